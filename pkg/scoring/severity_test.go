package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurelens/core/pkg/contracts"
)

func TestSeverityDuplicatePayment(t *testing.T) {
	c := contracts.Candidate{
		Type: contracts.TypeDuplicatePayment,
		Features: contracts.FeatureSet{
			Type:             contracts.TypeDuplicatePayment,
			DuplicatePayment: &contracts.DuplicatePaymentFeatures{PaymentCount: 2},
		},
	}
	sev := Severity(&c)
	require.NotNil(t, sev)
	assert.InDelta(t, 0.25, *sev, 1e-9)

	c.Features.DuplicatePayment.PaymentCount = 6
	sev = Severity(&c)
	require.NotNil(t, sev)
	assert.InDelta(t, 1.0, *sev, 1e-9, "clamped above five payments")
}

func TestSeverityLengthyApproval(t *testing.T) {
	c := contracts.Candidate{
		Type: contracts.TypeLengthyApprovalPO,
		Features: contracts.FeatureSet{
			Type:            contracts.TypeLengthyApprovalPO,
			LengthyApproval: &contracts.LengthyApprovalFeatures{LeadTimeHours: 400, ThresholdHours: 100},
		},
	}
	sev := Severity(&c)
	require.NotNil(t, sev)
	assert.InDelta(t, 1.0, *sev, 1e-9)

	c.Features.LengthyApproval.LeadTimeHours = 150
	sev = Severity(&c)
	require.NotNil(t, sev)
	assert.InDelta(t, 0.5/3.0, *sev, 1e-9)

	c.Features.LengthyApproval.ThresholdHours = 0
	assert.Nil(t, Severity(&c), "undefined without a positive threshold")
}

func TestSeverityMaverickMissingEventsPenalty(t *testing.T) {
	c := contracts.Candidate{
		Type: contracts.TypeMaverickBuying,
		Features: contracts.FeatureSet{
			Type: contracts.TypeMaverickBuying,
			Maverick: &contracts.MaverickFeatures{
				MaverickReason: contracts.ReasonMissingPRCreate,
				MissingEvents:  []string{"CreatePurchaseRequisition"},
			},
		},
	}
	sev := Severity(&c)
	require.NotNil(t, sev)
	assert.InDelta(t, 0.6, *sev, 1e-9, "0.7 base minus 0.1 for missing events")

	c.Features.Maverick.MissingEvents = nil
	sev = Severity(&c)
	require.NotNil(t, sev)
	assert.InDelta(t, 0.7, *sev, 1e-9)
}

func TestSeverityMaverickReasonBases(t *testing.T) {
	for reason, want := range map[string]float64{
		contracts.ReasonNoPRFound:          0.8,
		contracts.ReasonMissingPRApproval:  0.6,
		contracts.ReasonPOBeforePRApproval: 0.9,
		"something_else":                   0.6,
	} {
		c := contracts.Candidate{
			Type: contracts.TypeMaverickBuying,
			Features: contracts.FeatureSet{
				Type:     contracts.TypeMaverickBuying,
				Maverick: &contracts.MaverickFeatures{MaverickReason: reason},
			},
		}
		sev := Severity(&c)
		require.NotNil(t, sev, reason)
		assert.InDelta(t, want, *sev, 1e-9, reason)
	}
}

func TestPriorityScore(t *testing.T) {
	sev := 0.7
	p := PriorityScore(0.8, &sev)
	require.NotNil(t, p)
	assert.InDelta(t, 0.56, *p, 1e-9)

	assert.Nil(t, PriorityScore(0.8, nil))
}

func TestEstimateFillsCandidates(t *testing.T) {
	candidates := []contracts.Candidate{
		{
			Type:      contracts.TypeDuplicatePayment,
			FinalConf: 0.5,
			Features: contracts.FeatureSet{
				Type:             contracts.TypeDuplicatePayment,
				DuplicatePayment: &contracts.DuplicatePaymentFeatures{PaymentCount: 3},
			},
		},
	}
	Estimate(candidates)
	require.NotNil(t, candidates[0].Severity)
	assert.InDelta(t, 0.5, *candidates[0].Severity, 1e-9)
	require.NotNil(t, candidates[0].PriorityScore)
	assert.InDelta(t, 0.25, *candidates[0].PriorityScore, 1e-9)
}
