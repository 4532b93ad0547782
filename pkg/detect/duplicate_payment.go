package detect

import (
	"context"
	"sort"
	"strings"

	"github.com/procurelens/core/pkg/contracts"
	"github.com/procurelens/core/pkg/ocel"
)

// DuplicatePayment flags invoice receipts with two or more ExecutePayment
// events.
type DuplicatePayment struct{}

func (DuplicatePayment) Name() string { return contracts.TypeDuplicatePayment }

func (DuplicatePayment) Detect(ctx context.Context, snap *ocel.Snapshot) ([]contracts.Candidate, error) {
	type group struct {
		objectType string
		events     []eventRef
	}
	grouped := map[string]*group{}
	var order []string

	for _, ev := range snap.Events() {
		if ev.Activity != ocel.ActivityExecutePayment {
			continue
		}
		for _, l := range snap.LinksByEvent(ev.ID) {
			objType := snap.ObjectType(l.ObjectID)
			if strings.ToLower(objType) != ocel.ObjectInvoiceReceipt {
				continue
			}
			g, ok := grouped[l.ObjectID]
			if !ok {
				g = &group{objectType: objType}
				grouped[l.ObjectID] = g
				order = append(order, l.ObjectID)
			}
			g.events = append(g.events, eventRef{EventID: ev.ID, TS: ev.TS})
		}
	}

	var candidates []contracts.Candidate
	for _, invoiceID := range order {
		g := grouped[invoiceID]
		if len(g.events) < 2 {
			continue
		}
		events := make([]eventRef, len(g.events))
		copy(events, g.events)
		sort.SliceStable(events, func(i, j int) bool { return earlier(events[i], events[j]) })

		eventIDs := make([]string, len(events))
		tsList := make([]string, len(events))
		for i, e := range events {
			eventIDs[i] = e.EventID
			tsList[i] = e.TS
		}

		candidates = append(candidates, contracts.Candidate{
			Type:              contracts.TypeDuplicatePayment,
			AnchorObjectID:    invoiceID,
			AnchorObjectType:  g.objectType,
			Status:            "open",
			EvidenceEventIDs:  eventIDs,
			EvidenceObjectIDs: []string{invoiceID},
			Features: contracts.FeatureSet{
				Type: contracts.TypeDuplicatePayment,
				DuplicatePayment: &contracts.DuplicatePaymentFeatures{
					PaymentCount:    len(events),
					PaymentTSList:   tsList,
					PaymentEventIDs: eventIDs,
				},
			},
		})
	}
	return candidates, nil
}
