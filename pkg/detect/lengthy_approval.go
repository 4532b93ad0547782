package detect

import (
	"context"
	"sort"

	"github.com/procurelens/core/pkg/contracts"
	"github.com/procurelens/core/pkg/ocel"
)

// LengthyApproval flags purchase requisitions and purchase orders whose
// create-to-approval lead time exceeds an adaptive percentile threshold
// computed per object type from the current run.
type LengthyApproval struct {
	// Percentile of observed lead times used as threshold (default p95).
	Percentile float64
}

func (LengthyApproval) Name() string { return "lengthy_approval" }

type approvalState struct {
	objectType string
	create     *eventRef
	approve    *eventRef
	delegate   *eventRef
}

var lengthyActivities = map[string]bool{
	ocel.ActivityCreatePR:           true,
	ocel.ActivityApprovePR:          true,
	ocel.ActivityDelegatePRApproval: true,
	ocel.ActivityCreatePO:           true,
	ocel.ActivityApprovePO:          true,
}

func (d LengthyApproval) Detect(ctx context.Context, snap *ocel.Snapshot) ([]contracts.Candidate, error) {
	p := d.Percentile
	if p == 0 {
		p = 0.95
	}

	perObject := map[string]*approvalState{}
	var order []string
	delegateEvents := map[string][]eventRef{}

	for _, ev := range snap.Events() {
		if !lengthyActivities[ev.Activity] {
			continue
		}
		for _, l := range snap.LinksByEvent(ev.ID) {
			objType := snap.ObjectType(l.ObjectID)
			if objType != ocel.ObjectPurchaseRequisition && objType != ocel.ObjectPurchaseOrder {
				continue
			}
			state, ok := perObject[l.ObjectID]
			if !ok {
				state = &approvalState{objectType: objType}
				perObject[l.ObjectID] = state
				order = append(order, l.ObjectID)
			}
			ref := eventRef{EventID: ev.ID, TS: ev.TS}
			switch ev.Activity {
			case ocel.ActivityCreatePR, ocel.ActivityCreatePO:
				state.create = keepEarliest(state.create, ref)
			case ocel.ActivityApprovePR, ocel.ActivityApprovePO:
				state.approve = keepEarliest(state.approve, ref)
			case ocel.ActivityDelegatePRApproval:
				state.delegate = keepEarliest(state.delegate, ref)
				if objType == ocel.ObjectPurchaseRequisition {
					delegateEvents[l.ObjectID] = append(delegateEvents[l.ObjectID], ref)
				}
			}
		}
	}

	leadTimesByType := map[string][]float64{}
	for _, objID := range order {
		state := perObject[objID]
		approval := state.approvalComplete()
		if state.create == nil || approval == nil {
			continue
		}
		lead := HoursBetween(ParseTS(state.create.TS), ParseTS(approval.TS))
		leadTimesByType[state.objectType] = append(leadTimesByType[state.objectType], lead)
	}

	thresholds := map[string]*float64{}
	for objType, leads := range leadTimesByType {
		thresholds[objType] = Percentile(leads, p)
	}

	var candidates []contracts.Candidate
	for _, objID := range order {
		state := perObject[objID]
		approval := state.approvalComplete()
		if state.create == nil || approval == nil {
			continue
		}
		threshold := thresholds[state.objectType]
		if threshold == nil {
			continue
		}
		lead := HoursBetween(ParseTS(state.create.TS), ParseTS(approval.TS))
		if lead <= *threshold {
			continue
		}

		evidenceEventIDs := []string{state.create.EventID, approval.EventID}
		if state.objectType == ocel.ObjectPurchaseRequisition {
			createTS := ParseTS(state.create.TS)
			approvalTS := ParseTS(approval.TS)
			var inWindow []eventRef
			for _, ref := range delegateEvents[objID] {
				ts := ParseTS(ref.TS)
				if !ts.Before(createTS) && !ts.After(approvalTS) {
					inWindow = append(inWindow, ref)
				}
			}
			sort.SliceStable(inWindow, func(i, j int) bool { return earlier(inWindow[i], inWindow[j]) })
			for _, ref := range inWindow {
				evidenceEventIDs = append(evidenceEventIDs, ref.EventID)
			}
		}

		ctype := contracts.TypeLengthyApprovalPO
		if state.objectType == ocel.ObjectPurchaseRequisition {
			ctype = contracts.TypeLengthyApprovalPR
		}
		candidates = append(candidates, contracts.Candidate{
			Type:              ctype,
			AnchorObjectID:    objID,
			AnchorObjectType:  state.objectType,
			Status:            "open",
			EvidenceEventIDs:  evidenceEventIDs,
			EvidenceObjectIDs: []string{objID},
			Features: contracts.FeatureSet{
				Type: ctype,
				LengthyApproval: &contracts.LengthyApprovalFeatures{
					LeadTimeHours:         lead,
					ThresholdHours:        *threshold,
					CreateEventID:         state.create.EventID,
					ApprovalEventID:       approval.EventID,
					ApprovalEventActivity: approval.Activity,
				},
			},
		})
	}
	return candidates, nil
}

// approvalComplete resolves the approval-complete event for the object: for a
// PR the earlier of approve/delegate, for a PO the approve event.
func (s *approvalState) approvalComplete() *approvalChoice {
	if s.objectType == ocel.ObjectPurchaseRequisition {
		var choices []approvalChoice
		if s.approve != nil {
			choices = append(choices, approvalChoice{eventRef: *s.approve, Activity: ocel.ActivityApprovePR})
		}
		if s.delegate != nil {
			choices = append(choices, approvalChoice{eventRef: *s.delegate, Activity: ocel.ActivityDelegatePRApproval})
		}
		return pickApprovalComplete(choices)
	}
	if s.approve != nil {
		return &approvalChoice{eventRef: *s.approve, Activity: ocel.ActivityApprovePO}
	}
	return nil
}
