package scoring

import "github.com/procurelens/core/pkg/contracts"

// maverickSevBase maps a maverick reason to its starting severity.
var maverickSevBase = map[string]float64{
	contracts.ReasonMissingPRCreate:    0.7,
	contracts.ReasonMissingPRApproval:  0.6,
	contracts.ReasonPOBeforePRApproval: 0.9,
	contracts.ReasonNoPRFound:          0.8,
}

// Severity computes a type-specific severity in [0,1], independent of
// confidence. Returns nil when the inputs do not define one.
func Severity(c *contracts.Candidate) *float64 {
	switch c.Type {
	case contracts.TypeDuplicatePayment:
		f := c.Features.DuplicatePayment
		if f == nil {
			return nil
		}
		v := clamp((float64(f.PaymentCount) - 1.0) / 4.0)
		return &v

	case contracts.TypeLengthyApprovalPR, contracts.TypeLengthyApprovalPO:
		f := c.Features.LengthyApproval
		if f == nil || f.ThresholdHours <= 0 {
			return nil
		}
		excess := (f.LeadTimeHours - f.ThresholdHours) / f.ThresholdHours
		if excess < 0 {
			excess = 0
		}
		v := clamp(excess / 3.0)
		return &v

	case contracts.TypeMaverickBuying:
		f := c.Features.Maverick
		if f == nil {
			return nil
		}
		base, ok := maverickSevBase[f.MaverickReason]
		if !ok {
			base = 0.6
		}
		if f.MaverickReason == contracts.ReasonPOBeforePRApproval && f.ApprovalGapHours != nil {
			base = min(1.0, base+min(0.1, *f.ApprovalGapHours/72.0*0.1))
		}
		if len(f.MissingEvents) > 0 {
			base = max(0.0, base-0.1)
		}
		v := clamp(base)
		return &v
	}
	return nil
}

// PriorityScore is severity times final confidence; nil when severity is
// undefined.
func PriorityScore(finalConf float64, severity *float64) *float64 {
	if severity == nil {
		return nil
	}
	v := *severity * finalConf
	return &v
}

// Estimate fills Severity and PriorityScore on every candidate in place. It
// assumes Score has already run so FinalConf is populated.
func Estimate(candidates []contracts.Candidate) {
	for i := range candidates {
		c := &candidates[i]
		c.Severity = Severity(c)
		c.PriorityScore = PriorityScore(c.FinalConf, c.Severity)
	}
}
