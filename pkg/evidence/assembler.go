// Package evidence builds the per-candidate grounding set: a chronological
// timeline of the cited events and a node/edge subgraph of their object
// neighborhood.
package evidence

import (
	"sort"

	"github.com/procurelens/core/pkg/contracts"
	"github.com/procurelens/core/pkg/ocel"
)

// Assembler resolves candidate evidence against one log snapshot.
type Assembler struct {
	snap *ocel.Snapshot
}

func NewAssembler(snap *ocel.Snapshot) *Assembler {
	return &Assembler{snap: snap}
}

// Assemble builds the full evidence record for a candidate. The candidate id
// must already be assigned.
func (a *Assembler) Assemble(c *contracts.Candidate) contracts.Evidence {
	return contracts.Evidence{
		CandidateID:       c.CandidateID,
		EvidenceEventIDs:  c.EvidenceEventIDs,
		EvidenceObjectIDs: c.EvidenceObjectIDs,
		Timeline:          a.Timeline(c.EvidenceEventIDs),
		Features:          c.Features,
		Subgraph:          a.Subgraph(c.Type, c.AnchorObjectID, c.EvidenceEventIDs),
	}
}

// Timeline resolves evidence event ids into ordered entries. Duplicate ids
// collapse into one entry; unknown ids are dropped. Entries sort ascending by
// the raw timestamp string, empty timestamps first, ties keeping resolution
// order.
func (a *Assembler) Timeline(eventIDs []string) []contracts.TimelineEntry {
	var out []contracts.TimelineEntry
	for _, id := range uniqueIDs(eventIDs) {
		ev, ok := a.snap.Event(id)
		if !ok {
			continue
		}
		entry := contracts.TimelineEntry{
			EventID:   ev.ID,
			Activity:  ev.Activity,
			TS:        ev.TS,
			Resource:  ev.Resource,
			Lifecycle: ev.Lifecycle,
		}
		seen := map[string]bool{}
		for _, l := range a.snap.LinksByEvent(id) {
			if l.ObjectID == "" || seen[l.ObjectID] {
				continue
			}
			seen[l.ObjectID] = true
			entry.LinkedObjectIDs = append(entry.LinkedObjectIDs, l.ObjectID)
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS < out[j].TS })
	return out
}

// Subgraph builds the evidence neighborhood. All evidence events become Event
// nodes with one E2O edge per link; the object layer depends on the candidate
// type:
//
//   - lengthy_approval_pr: O2O edges from the anchor PR to linked quotations
//   - lengthy_approval_po: O2O edges from the anchor PO to linked materials
//   - duplicate_payment: every O2O edge touching the evidence objects
//   - maverick_buying: restricted to the PO->PR (or PO->Quotation->PR) path,
//     pruning E2O edges whose object falls outside it
func (a *Assembler) Subgraph(ctype, anchorID string, eventIDs []string) contracts.Subgraph {
	objectIDs := map[string]bool{anchorID: true}
	rootObjects := map[string]bool{anchorID: true}
	var nodes []contracts.Node
	var edges []contracts.Edge

	ids := uniqueIDs(eventIDs)
	for _, id := range ids {
		for _, l := range a.snap.LinksByEvent(id) {
			if l.ObjectID != "" {
				objectIDs[l.ObjectID] = true
				rootObjects[l.ObjectID] = true
			}
			edges = append(edges, contracts.Edge{
				Source:    id,
				Target:    l.ObjectID,
				Type:      contracts.EdgeE2O,
				Qualifier: l.Qualifier,
			})
		}
	}
	for _, id := range ids {
		if ev, ok := a.snap.Event(id); ok {
			nodes = append(nodes, contracts.Node{ID: id, Type: contracts.NodeEvent, Activity: ev.Activity})
		}
	}

	switch ctype {
	case contracts.TypeLengthyApprovalPR:
		edges = append(edges, a.anchorRelationEdges(anchorID, ocel.ObjectQuotation, objectIDs)...)
	case contracts.TypeLengthyApprovalPO:
		edges = append(edges, a.anchorRelationEdges(anchorID, ocel.ObjectMaterial, objectIDs)...)
	case contracts.TypeDuplicatePayment:
		for _, rel := range a.snap.RelationsTouching(rootObjects) {
			objectIDs[rel.SourceID] = true
			objectIDs[rel.TargetID] = true
			edges = append(edges, o2oEdge(rel))
		}
	case contracts.TypeMaverickBuying:
		rels := a.snap.RelationsTouching(rootObjects)
		path := a.maverickPath(anchorID, rootObjects, rels)
		for _, rel := range rels {
			if path[rel.SourceID] && path[rel.TargetID] {
				edges = append(edges, o2oEdge(rel))
			}
		}
		objectIDs = path
		kept := edges[:0]
		for _, e := range edges {
			if e.Type != contracts.EdgeE2O || objectIDs[e.Target] {
				kept = append(kept, e)
			}
		}
		edges = kept
	}

	for _, id := range sortedKeys(objectIDs) {
		nodes = append(nodes, contracts.Node{
			ID:         id,
			Type:       contracts.NodeObject,
			ObjectType: a.snap.ObjectType(id),
		})
	}
	return contracts.Subgraph{Nodes: nodes, Edges: edges}
}

// anchorRelationEdges collects O2O edges from the anchor to neighbors of one
// object type, adding those neighbors to objectIDs.
func (a *Assembler) anchorRelationEdges(anchorID, wantType string, objectIDs map[string]bool) []contracts.Edge {
	var out []contracts.Edge
	for _, rel := range a.snap.RelationsTouching(map[string]bool{anchorID: true}) {
		other := rel.TargetID
		if rel.SourceID != anchorID {
			other = rel.SourceID
		}
		if a.snap.ObjectType(other) != wantType {
			continue
		}
		objectIDs[other] = true
		out = append(out, o2oEdge(rel))
	}
	return out
}

// maverickPath resolves the object set of the PO->PR provenance path: the
// anchor plus any PRs among the evidence objects, or, when no PR was linked
// directly, the anchor's quotations plus the PRs behind them.
func (a *Assembler) maverickPath(anchorID string, rootObjects map[string]bool, rels []ocel.Relation) map[string]bool {
	path := map[string]bool{anchorID: true}
	hasPR := false
	for id := range rootObjects {
		if a.snap.ObjectType(id) == ocel.ObjectPurchaseRequisition {
			path[id] = true
			hasPR = true
		}
	}
	if hasPR {
		return path
	}
	quotations := map[string]bool{}
	for id := range rootObjects {
		if a.snap.ObjectType(id) == ocel.ObjectQuotation {
			quotations[id] = true
		}
	}
	for _, rel := range rels {
		if rel.SourceID == anchorID && a.snap.ObjectType(rel.TargetID) == ocel.ObjectQuotation {
			quotations[rel.TargetID] = true
		}
		if rel.TargetID == anchorID && a.snap.ObjectType(rel.SourceID) == ocel.ObjectQuotation {
			quotations[rel.SourceID] = true
		}
	}
	for id := range quotations {
		path[id] = true
	}
	for _, rel := range rels {
		if quotations[rel.SourceID] && a.snap.ObjectType(rel.TargetID) == ocel.ObjectPurchaseRequisition {
			path[rel.TargetID] = true
		}
		if quotations[rel.TargetID] && a.snap.ObjectType(rel.SourceID) == ocel.ObjectPurchaseRequisition {
			path[rel.SourceID] = true
		}
	}
	return path
}

func o2oEdge(rel ocel.Relation) contracts.Edge {
	return contracts.Edge{
		Source:    rel.SourceID,
		Target:    rel.TargetID,
		Type:      contracts.EdgeO2O,
		Qualifier: rel.Qualifier,
	}
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
