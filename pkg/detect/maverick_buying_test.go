package detect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurelens/core/pkg/contracts"
	"github.com/procurelens/core/pkg/ocel"
)

func TestMaverickNoPRFound(t *testing.T) {
	events := []ocel.Event{
		{ID: "po-create:1", Activity: "CreatePurchaseOrder", TS: "2022-02-01T00:00:00Z"},
	}
	objects := []ocel.Object{{ID: "po:1", Type: "purchase_order"}}
	links := []ocel.Link{{EventID: "po-create:1", ObjectID: "po:1"}}
	snap := ocel.NewSnapshot(events, objects, nil, links)

	candidates, err := MaverickBuying{}.Detect(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, contracts.TypeMaverickBuying, c.Type)
	assert.Equal(t, "po:1", c.AnchorObjectID)
	require.NotNil(t, c.Features.Maverick)
	assert.Equal(t, contracts.ReasonNoPRFound, c.Features.Maverick.MaverickReason)
	assert.False(t, c.Features.Maverick.HasPR)
	assert.Nil(t, c.Features.Maverick.ApprovalGapHours)
	assert.Equal(t, []string{"po-create:1"}, c.EvidenceEventIDs)
	assert.Equal(t, []string{"po:1"}, c.EvidenceObjectIDs)
	assert.Empty(t, c.Features.Maverick.MissingEvents)
}

func TestMaverickMissingPRCreate(t *testing.T) {
	// PR reached via PO->Quotation->PR, has an RFQ but no create event
	events := []ocel.Event{
		{ID: "po-create:1", Activity: "CreatePurchaseOrder", TS: "2022-02-02T00:00:00Z"},
		{ID: "rfq:1", Activity: "CreateRequestforQuotation", TS: "2022-02-01T00:00:00Z"},
	}
	objects := []ocel.Object{
		{ID: "po:1", Type: "purchase_order"},
		{ID: "q:1", Type: "quotation"},
		{ID: "pr:1", Type: "purchase_requisition"},
	}
	relations := []ocel.Relation{
		{SourceID: "po:1", TargetID: "q:1"},
		{SourceID: "q:1", TargetID: "pr:1"},
	}
	links := []ocel.Link{
		{EventID: "po-create:1", ObjectID: "po:1"},
		{EventID: "rfq:1", ObjectID: "pr:1"},
	}
	snap := ocel.NewSnapshot(events, objects, relations, links)

	candidates, err := MaverickBuying{}.Detect(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	f := c.Features.Maverick
	require.NotNil(t, f)
	assert.Equal(t, contracts.ReasonMissingPRCreate, f.MaverickReason)
	assert.True(t, f.HasPR)
	assert.Nil(t, f.PRCreateTS)
	require.NotNil(t, f.RFQTS)
	assert.Equal(t, "2022-02-01T00:00:00Z", *f.RFQTS)
	// RFQ event enters evidence only for this reason
	assert.Equal(t, []string{"po-create:1", "rfq:1"}, c.EvidenceEventIDs)
	assert.Equal(t, []string{"po:1", "pr:1"}, c.EvidenceObjectIDs)
	assert.Contains(t, f.MissingEvents, "CreatePurchaseRequisition")
}

func TestMaverickMissingPRApproval(t *testing.T) {
	events := []ocel.Event{
		{ID: "po-create:1", Activity: "CreatePurchaseOrder", TS: "2022-02-02T00:00:00Z"},
		{ID: "pr-create:1", Activity: "CreatePurchaseRequisition", TS: "2022-01-30T00:00:00Z"},
	}
	objects := []ocel.Object{
		{ID: "po:1", Type: "purchase_order"},
		{ID: "pr:1", Type: "purchase_requisition"},
	}
	relations := []ocel.Relation{{SourceID: "po:1", TargetID: "pr:1"}}
	links := []ocel.Link{
		{EventID: "po-create:1", ObjectID: "po:1"},
		{EventID: "pr-create:1", ObjectID: "pr:1"},
	}
	snap := ocel.NewSnapshot(events, objects, relations, links)

	candidates, err := MaverickBuying{}.Detect(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	f := candidates[0].Features.Maverick
	assert.Equal(t, contracts.ReasonMissingPRApproval, f.MaverickReason)
	assert.Equal(t, []string{"ApprovePurchaseRequisition", "DelegatePurchaseRequisitionApproval"}, f.MissingEvents)
	assert.Equal(t, []string{"po-create:1", "pr-create:1"}, candidates[0].EvidenceEventIDs)
}

func TestMaverickCompleteChainNotFlagged(t *testing.T) {
	events := []ocel.Event{
		{ID: "po-create:1", Activity: "CreatePurchaseOrder", TS: "2022-02-02T00:00:00Z"},
		{ID: "pr-create:1", Activity: "CreatePurchaseRequisition", TS: "2022-01-30T00:00:00Z"},
		{ID: "pr-approve:1", Activity: "ApprovePurchaseRequisition", TS: "2022-01-31T00:00:00Z"},
	}
	objects := []ocel.Object{
		{ID: "po:1", Type: "purchase_order"},
		{ID: "pr:1", Type: "purchase_requisition"},
	}
	relations := []ocel.Relation{{SourceID: "po:1", TargetID: "pr:1"}}
	links := []ocel.Link{
		{EventID: "po-create:1", ObjectID: "po:1"},
		{EventID: "pr-create:1", ObjectID: "pr:1"},
		{EventID: "pr-approve:1", ObjectID: "pr:1"},
	}
	snap := ocel.NewSnapshot(events, objects, relations, links)

	candidates, err := MaverickBuying{}.Detect(context.Background(), snap)
	require.NoError(t, err)
	assert.Empty(t, candidates, "complete provenance is not maverick; ordering checks are out of scope")
}

func TestMaverickUsedPRIsEarliestApproval(t *testing.T) {
	events := []ocel.Event{
		{ID: "po-create:1", Activity: "CreatePurchaseOrder", TS: "2022-02-02T00:00:00Z"},
		{ID: "pr-approve:a", Activity: "ApprovePurchaseRequisition", TS: "2022-02-01T00:00:00Z"},
		{ID: "pr-approve:b", Activity: "ApprovePurchaseRequisition", TS: "2022-01-15T00:00:00Z"},
		{ID: "rfq:a", Activity: "CreateRequestforQuotation", TS: "2022-01-01T00:00:00Z"},
	}
	objects := []ocel.Object{
		{ID: "po:1", Type: "purchase_order"},
		{ID: "pr:a", Type: "purchase_requisition"},
		{ID: "pr:b", Type: "purchase_requisition"},
	}
	relations := []ocel.Relation{
		{SourceID: "po:1", TargetID: "pr:a"},
		{SourceID: "po:1", TargetID: "pr:b"},
	}
	links := []ocel.Link{
		{EventID: "po-create:1", ObjectID: "po:1"},
		{EventID: "pr-approve:a", ObjectID: "pr:a"},
		{EventID: "pr-approve:b", ObjectID: "pr:b"},
		{EventID: "rfq:a", ObjectID: "pr:a"},
	}
	snap := ocel.NewSnapshot(events, objects, relations, links)

	candidates, err := MaverickBuying{}.Detect(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	// reason: no create anywhere but an RFQ exists
	assert.Equal(t, contracts.ReasonMissingPRCreate, c.Features.Maverick.MaverickReason)
	// used PR is the one with the earliest approval-complete event
	assert.Equal(t, []string{"po:1", "pr:b"}, c.EvidenceObjectIDs)
	require.NotNil(t, c.Features.Maverick.PRApproveTS)
	assert.Equal(t, "2022-01-15T00:00:00Z", *c.Features.Maverick.PRApproveTS)
}
