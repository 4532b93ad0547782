// Package scoring turns raw detector features into a base confidence and a
// severity, and derives the priority score used to rank open candidates.
package scoring

import (
	"github.com/procurelens/core/pkg/config"
	"github.com/procurelens/core/pkg/contracts"
)

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// maverickConfBase maps a maverick reason to its starting sub-score.
var maverickConfBase = map[string]float64{
	contracts.ReasonNoPRFound:          0.8,
	contracts.ReasonMissingPRApproval:  0.7,
	contracts.ReasonMissingPRCreate:    0.65,
	contracts.ReasonPOBeforePRApproval: 0.6,
}

func evidenceQuality(c *contracts.Candidate) float64 {
	switch {
	case len(c.EvidenceEventIDs) > 0 && len(c.EvidenceObjectIDs) > 0:
		return 1.0
	case len(c.EvidenceEventIDs) > 0 || len(c.EvidenceObjectIDs) > 0:
		return 0.6
	default:
		return 0.2
	}
}

func subScores(c *contracts.Candidate) contracts.SubScores {
	s := contracts.SubScores{S: 0.5, R: 0.5, I: 0.5, Q: evidenceQuality(c)}

	switch c.Type {
	case contracts.TypeDuplicatePayment:
		count := 1.0
		if f := c.Features.DuplicatePayment; f != nil && f.PaymentCount > 0 {
			count = float64(f.PaymentCount)
		}
		s.S = clamp(0.4 + 0.2*(count-1))
		s.R = clamp(0.3 + 0.1*count)
		s.I = clamp(0.4 + 0.15*(count-1))

	case contracts.TypeLengthyApprovalPR, contracts.TypeLengthyApprovalPO:
		ratio := 1.0
		if f := c.Features.LengthyApproval; f != nil && f.ThresholdHours > 0 {
			ratio = f.LeadTimeHours / f.ThresholdHours
		}
		s.S = clamp(ratio / 2.0)
		s.R = clamp(0.5 + 0.3*(ratio-1))
		s.I = clamp(0.3 + 0.2*ratio)

	case contracts.TypeMaverickBuying:
		f := c.Features.Maverick
		if f == nil {
			break
		}
		base, ok := maverickConfBase[f.MaverickReason]
		if !ok {
			base = 0.5
		}
		s.S = base
		s.R = clamp(base - 0.1)
		s.I = clamp(base - 0.2)
		if f.MaverickReason == contracts.ReasonPOBeforePRApproval && f.ApprovalGapHours != nil {
			gap := *f.ApprovalGapHours
			s.S = clamp(base + min(0.3, gap/72.0*0.3))
			s.I = clamp(s.I + min(0.2, gap/72.0*0.2))
		}
		if f.MaverickReason == contracts.ReasonMissingPRCreate {
			s.I = clamp(s.I + 0.05)
		}
		if f.PRCreateTS == nil && f.RFQTS == nil {
			s.Q = clamp(s.Q - 0.3)
		}
	}
	return s
}

// BaseConfidence computes the weighted blend of the four sub-scores, writes
// the sub-scores back into the feature set, and sets BaseConf. FinalConf
// starts out equal to BaseConf; downstream adjustment may move it.
func BaseConfidence(c *contracts.Candidate, w config.Weights) float64 {
	s := subScores(c)
	base := clamp(w.S*s.S + w.R*s.R + w.I*s.I + w.Q*s.Q)
	c.Features.Scores = &s
	c.BaseConf = base
	c.FinalConf = base
	return base
}

// Score runs BaseConfidence over every candidate in place.
func Score(candidates []contracts.Candidate, w config.Weights) {
	for i := range candidates {
		BaseConfidence(&candidates[i], w)
	}
}
