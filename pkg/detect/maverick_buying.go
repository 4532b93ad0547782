package detect

import (
	"context"

	"github.com/procurelens/core/pkg/contracts"
	"github.com/procurelens/core/pkg/ocel"
)

// MaverickBuying flags purchase orders whose PR provenance is incomplete: no
// linked purchase requisition at all, a linked PR whose create event is
// missing while an RFQ exists, or a linked PR that was never
// approval-completed. A PO with a full chain is not flagged; ordering
// violations (PO created before PR approval) are outside this detector.
type MaverickBuying struct{}

func (MaverickBuying) Name() string { return contracts.TypeMaverickBuying }

func (MaverickBuying) Detect(ctx context.Context, snap *ocel.Snapshot) ([]contracts.Candidate, error) {
	g := ocel.BuildGraph(snap)

	prApprove := earliestByObject(snap, ocel.ObjectPurchaseRequisition, map[string]bool{
		ocel.ActivityApprovePR:          true,
		ocel.ActivityDelegatePRApproval: true,
	})
	prCreate := earliestByObject(snap, ocel.ObjectPurchaseRequisition, map[string]bool{
		ocel.ActivityCreatePR: true,
	})
	prRFQ := earliestByObject(snap, ocel.ObjectPurchaseRequisition, map[string]bool{
		ocel.ActivityCreateRFQ: true,
	})
	poCreate := earliestByObject(snap, ocel.ObjectPurchaseOrder, map[string]bool{
		ocel.ActivityCreatePO: true,
	})

	// stable PO iteration: first-seen order over the event walk
	var poOrder []string
	seenPO := map[string]bool{}
	for _, ev := range snap.Events() {
		if ev.Activity != ocel.ActivityCreatePO {
			continue
		}
		for _, l := range snap.LinksByEvent(ev.ID) {
			if snap.ObjectType(l.ObjectID) == ocel.ObjectPurchaseOrder && !seenPO[l.ObjectID] {
				seenPO[l.ObjectID] = true
				poOrder = append(poOrder, l.ObjectID)
			}
		}
	}

	var candidates []contracts.Candidate
	for _, poID := range poOrder {
		poCreateEvt, ok := poCreate[poID]
		if !ok {
			continue
		}
		prIDs := g.RelatedPRs(poID)
		hasPR := len(prIDs) > 0

		var prUsed string
		var prApproveEvt *eventRef
		if hasPR {
			prUsed = prIDs[0]
			for _, prID := range prIDs {
				if evt, ok := prApprove[prID]; ok {
					if prApproveEvt == nil || earlier(evt, *prApproveEvt) {
						prUsed = prID
						e := evt
						prApproveEvt = &e
					}
				}
			}
		}

		var bestPRCreate, bestRFQ *eventRef
		for _, prID := range prIDs {
			if evt, ok := prCreate[prID]; ok {
				bestPRCreate = keepEarliest(bestPRCreate, evt)
			}
			if evt, ok := prRFQ[prID]; ok {
				bestRFQ = keepEarliest(bestRFQ, evt)
			}
		}

		var reason string
		switch {
		case !hasPR:
			reason = contracts.ReasonNoPRFound
		case bestPRCreate == nil && bestRFQ != nil:
			reason = contracts.ReasonMissingPRCreate
		case prApproveEvt == nil:
			reason = contracts.ReasonMissingPRApproval
		default:
			continue
		}

		evidenceEventIDs := []string{poCreateEvt.EventID}
		if hasPR && bestPRCreate != nil {
			evidenceEventIDs = append(evidenceEventIDs, bestPRCreate.EventID)
		}
		if reason == contracts.ReasonMissingPRCreate && bestRFQ != nil {
			evidenceEventIDs = append(evidenceEventIDs, bestRFQ.EventID)
		}
		if prApproveEvt != nil {
			evidenceEventIDs = append(evidenceEventIDs, prApproveEvt.EventID)
		}
		evidenceObjectIDs := []string{poID}
		if prUsed != "" {
			evidenceObjectIDs = append(evidenceObjectIDs, prUsed)
		}

		var missingEvents []string
		if hasPR && bestPRCreate == nil {
			missingEvents = append(missingEvents, ocel.ActivityCreatePR)
		}
		if hasPR && prApproveEvt == nil {
			missingEvents = append(missingEvents, ocel.ApprovalCompleteActivities...)
		}

		features := &contracts.MaverickFeatures{
			POCreateTS:     poCreateEvt.TS,
			HasPR:          hasPR,
			MaverickReason: reason,
			MissingEvents:  missingEvents,
		}
		if bestPRCreate != nil {
			ts := bestPRCreate.TS
			features.PRCreateTS = &ts
		}
		if prApproveEvt != nil {
			ts := prApproveEvt.TS
			features.PRApproveTS = &ts
		}
		if bestRFQ != nil {
			ts := bestRFQ.TS
			features.RFQTS = &ts
		}

		candidates = append(candidates, contracts.Candidate{
			Type:              contracts.TypeMaverickBuying,
			AnchorObjectID:    poID,
			AnchorObjectType:  ocel.ObjectPurchaseOrder,
			Status:            "open",
			EvidenceEventIDs:  evidenceEventIDs,
			EvidenceObjectIDs: evidenceObjectIDs,
			Features: contracts.FeatureSet{
				Type:     contracts.TypeMaverickBuying,
				Maverick: features,
			},
		})
	}
	return candidates, nil
}
