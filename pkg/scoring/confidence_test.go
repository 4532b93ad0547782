package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurelens/core/pkg/config"
	"github.com/procurelens/core/pkg/contracts"
)

func defaultWeights() config.Weights {
	return config.Default().Weights
}

func TestBaseConfidenceDuplicatePayment(t *testing.T) {
	c := contracts.Candidate{
		Type:              contracts.TypeDuplicatePayment,
		EvidenceEventIDs:  []string{"pay:1", "pay:2"},
		EvidenceObjectIDs: []string{"invoice:1"},
		Features: contracts.FeatureSet{
			Type:             contracts.TypeDuplicatePayment,
			DuplicatePayment: &contracts.DuplicatePaymentFeatures{PaymentCount: 2},
		},
	}
	base := BaseConfidence(&c, defaultWeights())

	// S=0.6 R=0.5 I=0.55 Q=1.0 under default weights
	assert.InDelta(t, 0.6075, base, 1e-9)
	assert.Equal(t, base, c.BaseConf)
	assert.Equal(t, base, c.FinalConf)
	require.NotNil(t, c.Features.Scores)
	assert.InDelta(t, 0.6, c.Features.Scores.S, 1e-9)
	assert.InDelta(t, 0.5, c.Features.Scores.R, 1e-9)
	assert.InDelta(t, 0.55, c.Features.Scores.I, 1e-9)
	assert.InDelta(t, 1.0, c.Features.Scores.Q, 1e-9)
}

func TestBaseConfidenceLengthyApprovalClamps(t *testing.T) {
	c := contracts.Candidate{
		Type:              contracts.TypeLengthyApprovalPR,
		EvidenceEventIDs:  []string{"create:1", "approve:1"},
		EvidenceObjectIDs: []string{"pr:1"},
		Features: contracts.FeatureSet{
			Type:            contracts.TypeLengthyApprovalPR,
			LengthyApproval: &contracts.LengthyApprovalFeatures{LeadTimeHours: 400, ThresholdHours: 100},
		},
	}
	base := BaseConfidence(&c, defaultWeights())

	// ratio 4 saturates every sub-score
	assert.InDelta(t, 1.0, base, 1e-9)
	assert.InDelta(t, 1.0, c.Features.Scores.S, 1e-9)
	assert.InDelta(t, 1.0, c.Features.Scores.I, 1e-9)
}

func TestBaseConfidenceMaverickReasonTable(t *testing.T) {
	rfq := "2022-01-01T00:00:00Z"
	c := contracts.Candidate{
		Type:              contracts.TypeMaverickBuying,
		EvidenceEventIDs:  []string{"po-create:1"},
		EvidenceObjectIDs: []string{"po:1", "pr:1"},
		Features: contracts.FeatureSet{
			Type: contracts.TypeMaverickBuying,
			Maverick: &contracts.MaverickFeatures{
				MaverickReason: contracts.ReasonMissingPRCreate,
				RFQTS:          &rfq,
			},
		},
	}
	base := BaseConfidence(&c, defaultWeights())

	// S=0.65 R=0.55 I=0.45+0.05 Q=1.0 (rfq_ts known, no penalty)
	assert.InDelta(t, 0.6275, base, 1e-9)
}

func TestBaseConfidenceMaverickQualityPenalty(t *testing.T) {
	c := contracts.Candidate{
		Type:              contracts.TypeMaverickBuying,
		EvidenceEventIDs:  []string{"po-create:1"},
		EvidenceObjectIDs: []string{"po:1"},
		Features: contracts.FeatureSet{
			Type:     contracts.TypeMaverickBuying,
			Maverick: &contracts.MaverickFeatures{MaverickReason: contracts.ReasonNoPRFound},
		},
	}
	base := BaseConfidence(&c, defaultWeights())

	// neither pr_create_ts nor rfq_ts known: Q drops from 1.0 to 0.7
	assert.InDelta(t, 0.72, base, 1e-9)
	assert.InDelta(t, 0.7, c.Features.Scores.Q, 1e-9)
}

func TestEvidenceQualityTiers(t *testing.T) {
	both := contracts.Candidate{EvidenceEventIDs: []string{"e"}, EvidenceObjectIDs: []string{"o"}}
	one := contracts.Candidate{EvidenceEventIDs: []string{"e"}}
	neither := contracts.Candidate{}
	assert.InDelta(t, 1.0, evidenceQuality(&both), 1e-9)
	assert.InDelta(t, 0.6, evidenceQuality(&one), 1e-9)
	assert.InDelta(t, 0.2, evidenceQuality(&neither), 1e-9)
}
