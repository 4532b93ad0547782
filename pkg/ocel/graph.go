package ocel

import "sort"

// coReferenceTypes limits co-reference edges to the procurement chain objects;
// events also touch materials, suppliers and invoices, which would otherwise
// flood the adjacency with irrelevant pairs.
var coReferenceTypes = map[string]bool{
	ObjectPurchaseOrder:       true,
	ObjectPurchaseRequisition: true,
	ObjectQuotation:           true,
}

// Graph is an undirected object adjacency materialized once per run. It keeps
// two layers: relation edges from explicit object-object rows, and the union
// of those with co-reference edges (objects linked by the same event). The
// PO->Quotation->PR two-hop resolution only follows relation edges; direct
// PO-PR resolution uses the union.
type Graph struct {
	adj    map[string]map[string]bool // relations ∪ co-reference
	relAdj map[string]map[string]bool // explicit relations only
	types  map[string]string
}

// BuildGraph materializes the adjacency from a snapshot.
func BuildGraph(s *Snapshot) *Graph {
	g := &Graph{
		adj:    map[string]map[string]bool{},
		relAdj: map[string]map[string]bool{},
		types:  map[string]string{},
	}
	for _, obj := range s.Objects() {
		g.types[obj.ID] = obj.Type
	}
	for _, rel := range s.Relations() {
		addEdge(g.adj, rel.SourceID, rel.TargetID)
		addEdge(g.relAdj, rel.SourceID, rel.TargetID)
	}
	for _, ev := range s.Events() {
		var objIDs []string
		for _, l := range s.LinksByEvent(ev.ID) {
			if coReferenceTypes[g.types[l.ObjectID]] {
				objIDs = append(objIDs, l.ObjectID)
			}
		}
		for i := 0; i < len(objIDs); i++ {
			for j := i + 1; j < len(objIDs); j++ {
				addEdge(g.adj, objIDs[i], objIDs[j])
			}
		}
	}
	return g
}

func addEdge(adj map[string]map[string]bool, a, b string) {
	if a == b {
		return
	}
	if adj[a] == nil {
		adj[a] = map[string]bool{}
	}
	if adj[b] == nil {
		adj[b] = map[string]bool{}
	}
	adj[a][b] = true
	adj[b][a] = true
}

// ObjectType returns the type of an object, or "" when unknown.
func (g *Graph) ObjectType(id string) string { return g.types[id] }

// NeighborsByType returns the neighbors of id with the given object type over
// the full adjacency (relations plus co-reference), sorted for determinism.
func (g *Graph) NeighborsByType(id, objType string) []string {
	return filterByType(g.adj[id], g.types, objType)
}

// RelationNeighborsByType is NeighborsByType restricted to explicit
// object-object relation edges.
func (g *Graph) RelationNeighborsByType(id, objType string) []string {
	return filterByType(g.relAdj[id], g.types, objType)
}

// RelatedPRs resolves the purchase requisitions linked to a purchase order:
// direct PO-PR edges (relations or co-reference) unioned with
// PO->Quotation->PR two-hop paths over explicit relations. Sorted.
func (g *Graph) RelatedPRs(poID string) []string {
	prs := map[string]bool{}
	for _, pr := range g.NeighborsByType(poID, ObjectPurchaseRequisition) {
		prs[pr] = true
	}
	for _, q := range g.RelationNeighborsByType(poID, ObjectQuotation) {
		for _, pr := range g.RelationNeighborsByType(q, ObjectPurchaseRequisition) {
			prs[pr] = true
		}
	}
	out := make([]string, 0, len(prs))
	for pr := range prs {
		out = append(out, pr)
	}
	sort.Strings(out)
	return out
}

func filterByType(neighbors map[string]bool, types map[string]string, objType string) []string {
	var out []string
	for id := range neighbors {
		if types[id] == objType {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
