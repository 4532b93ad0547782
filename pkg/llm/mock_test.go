package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurelens/core/pkg/contracts"
)

func maverickFixture() (*contracts.Candidate, *contracts.Evidence) {
	c := &contracts.Candidate{
		CandidateID:      "cand-m",
		Type:             contracts.TypeMaverickBuying,
		AnchorObjectID:   "purchase_order:1",
		AnchorObjectType: "purchase_order",
		BaseConf:         0.8,
		FinalConf:        0.8,
		Status:           "open",
	}
	ev := &contracts.Evidence{
		CandidateID:       "cand-m",
		EvidenceEventIDs:  []string{"event:rfq", "event:po"},
		EvidenceObjectIDs: []string{"purchase_requisition:1", "purchase_order:1"},
		Timeline: []contracts.TimelineEntry{
			{EventID: "event:rfq", Activity: "CreateRequestforQuotation", TS: "2022-01-01T00:00:00Z"},
			{EventID: "event:po", Activity: "CreatePurchaseOrder", TS: "2022-01-02T00:00:00Z"},
		},
		Features: contracts.FeatureSet{
			Type: contracts.TypeMaverickBuying,
			Maverick: &contracts.MaverickFeatures{
				POCreateTS:     "2022-01-02T00:00:00Z",
				HasPR:          true,
				MaverickReason: contracts.ReasonMissingPRCreate,
			},
		},
	}
	return c, ev
}

func TestMockVerifyOutput(t *testing.T) {
	c, ev := maverickFixture()
	out, usage, err := Mock{}.Invoke(context.Background(), Request{Task: contracts.TaskVerify, Candidate: c, Evidence: ev})
	require.NoError(t, err)
	assert.Nil(t, usage)

	assert.Equal(t, VerifySchemaVersion, out["schema_version"])
	assert.Equal(t, "confirm", out["verdict"])
	assert.Equal(t, 0.8, out["confidence"], "two cited events")
	assert.Equal(t, []string{"event:rfq", "event:po"}, out["evidence_used"])
	assert.Equal(t, "medium", out["priority_hint"])
	reasons := out["reasons"].([]string)
	require.Len(t, reasons, 3)
	assert.Contains(t, reasons[1], "missing_pr_create")
}

func TestMockVerifyDeterministic(t *testing.T) {
	c, ev := maverickFixture()
	req := Request{Task: contracts.TaskVerify, Candidate: c, Evidence: ev}
	first, _, err := Mock{}.Invoke(context.Background(), req)
	require.NoError(t, err)
	second, _, err := Mock{}.Invoke(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMockVerifyNoEvidence(t *testing.T) {
	c := &contracts.Candidate{CandidateID: "cand-e", Type: contracts.TypeDuplicatePayment, BaseConf: 0.95}
	ev := &contracts.Evidence{CandidateID: "cand-e"}
	out, _, err := Mock{}.Invoke(context.Background(), Request{Task: contracts.TaskVerify, Candidate: c, Evidence: ev})
	require.NoError(t, err)

	assert.Equal(t, "inconclusive", out["verdict"])
	assert.Equal(t, 0.4, out["confidence"])
	assert.Equal(t, []string{groundingNote}, out["cautions"])
	assert.Equal(t, "high", out["priority_hint"])
}

func TestMockEvidenceUsedCapsAtThree(t *testing.T) {
	ev := &contracts.Evidence{EvidenceEventIDs: []string{"a", "b", "c", "d"}}
	assert.Equal(t, []string{"a", "b", "c"}, mockEvidenceUsed(ev))
}

func TestMockExplainMissingPRCreateBullets(t *testing.T) {
	c, ev := maverickFixture()
	out, _, err := Mock{}.Invoke(context.Background(), Request{Task: contracts.TaskExplain, Candidate: c, Evidence: ev})
	require.NoError(t, err)

	assert.Equal(t, "RFQ observed but PR create not observed; PR→Quotation→PO path observed.", out["short_summary"])
	bullets := out["bullets"].([]any)
	joined := ""
	for _, b := range bullets {
		joined += b.(string) + " "
	}
	assert.Contains(t, joined, "CreateRequestforQuotation")
	assert.Contains(t, joined, "CreatePurchaseOrder")
}

func TestMockExplainLengthyApprovalSummary(t *testing.T) {
	c := &contracts.Candidate{
		CandidateID: "cand-l",
		Type:        contracts.TypeLengthyApprovalPR,
		BaseConf:    0.6,
	}
	ev := &contracts.Evidence{
		CandidateID:      "cand-l",
		EvidenceEventIDs: []string{"create:1", "approve:1"},
		Timeline: []contracts.TimelineEntry{
			{EventID: "create:1", Activity: "CreatePurchaseRequisition", TS: "2022-01-01T00:00:00Z"},
			{EventID: "approve:1", Activity: "ApprovePurchaseRequisition", TS: "2022-01-05T00:00:00Z"},
		},
		Features: contracts.FeatureSet{
			Type: contracts.TypeLengthyApprovalPR,
			LengthyApproval: &contracts.LengthyApprovalFeatures{
				LeadTimeHours:  96,
				ThresholdHours: 24,
			},
		},
	}
	out, _, err := Mock{}.Invoke(context.Background(), Request{Task: contracts.TaskExplain, Candidate: c, Evidence: ev})
	require.NoError(t, err)

	assert.Equal(t, "Approval lead time 96.0h exceeds threshold 24.0h by +72.0h (4.00x).", out["summary"])
	bullets := out["bullets"].([]any)
	last := bullets[len(bullets)-1].(string)
	assert.Equal(t, "Lead time 96.0h vs threshold 24.0h (4.00x).", last)
}

func TestMockReasonGenericSuffix(t *testing.T) {
	assert.Equal(t, "late_posting", mockReason(map[string]any{"zz_reason": "late_posting"}))
	assert.Equal(t, "", mockReason(map[string]any{"reasoning": "x"}))
	assert.Equal(t, "no_pr_found", mockReason(map[string]any{
		"maverick_reason": "no_pr_found",
		"aa_reason":       "other",
	}))
}
