package graph

import (
	"sort"

	"github.com/scrypster/contactgraph/pkg/types"
)

// Graph is an immutable relationship graph: threads sorted by (source, id),
// edges sorted by (person_a, person_b), with at most one edge per pair.
type Graph struct {
	threads   []*types.Thread
	edges     []*types.RelationshipEdge
	index     map[[2]string]*types.RelationshipEdge
	adjacency map[string][]*types.RelationshipEdge
}

// New builds a Graph from previously exported threads and edges. Duplicate
// pairs are folded together; weights are recomputed from source scores.
func New(threads []types.Thread, edges []types.RelationshipEdge) *Graph {
	tm := make(map[types.ThreadKey]*types.Thread, len(threads))
	for i := range threads {
		t := threads[i]
		t.Participants = append([]string(nil), t.Participants...)
		t.Canonicalize()
		if existing, ok := tm[t.Key()]; ok {
			existing.MessageCount += t.MessageCount
			if t.LastActivity.After(existing.LastActivity) {
				existing.LastActivity = t.LastActivity
			}
			existing.Participants = mergeSorted(existing.Participants, t.Participants)
			continue
		}
		tm[t.Key()] = &t
	}

	em := make(map[[2]string]*types.RelationshipEdge, len(edges))
	for i := range edges {
		in := &edges[i]
		a, b := types.EdgeKey(in.PersonA, in.PersonB)
		key := [2]string{a, b}
		e, ok := em[key]
		if !ok {
			e = &types.RelationshipEdge{
				PersonA: a,
				PersonB: b,
				Sources: make(map[types.SourceTag]types.SourceContribution, len(in.Sources)),
			}
			em[key] = e
		}
		for s, c := range in.Sources {
			acc := e.Sources[s]
			acc.Count += c.Count
			acc.GroupCount += c.GroupCount
			acc.Score += c.Score
			if c.LastInteraction.After(acc.LastInteraction) {
				acc.LastInteraction = c.LastInteraction
			}
			e.Sources[s] = acc
		}
		if in.LastInteraction.After(e.LastInteraction) {
			e.LastInteraction = in.LastInteraction
		}
	}
	return newGraph(tm, em)
}

func newGraph(threads map[types.ThreadKey]*types.Thread, edges map[[2]string]*types.RelationshipEdge) *Graph {
	g := &Graph{
		threads:   make([]*types.Thread, 0, len(threads)),
		edges:     make([]*types.RelationshipEdge, 0, len(edges)),
		index:     edges,
		adjacency: make(map[string][]*types.RelationshipEdge),
	}
	for _, t := range threads {
		g.threads = append(g.threads, t)
	}
	sort.Slice(g.threads, func(i, j int) bool {
		if g.threads[i].Source != g.threads[j].Source {
			return g.threads[i].Source < g.threads[j].Source
		}
		return g.threads[i].ID < g.threads[j].ID
	})

	for _, e := range edges {
		e.Weight = edgeWeight(e)
		g.edges = append(g.edges, e)
	}
	sort.Slice(g.edges, func(i, j int) bool {
		if g.edges[i].PersonA != g.edges[j].PersonA {
			return g.edges[i].PersonA < g.edges[j].PersonA
		}
		return g.edges[i].PersonB < g.edges[j].PersonB
	})
	for _, e := range g.edges {
		g.adjacency[e.PersonA] = append(g.adjacency[e.PersonA], e)
		g.adjacency[e.PersonB] = append(g.adjacency[e.PersonB], e)
	}
	return g
}

// Threads returns the threads in canonical order. Callers must not mutate them.
func (g *Graph) Threads() []*types.Thread {
	return g.threads
}

// Edges returns the edges in canonical order. Callers must not mutate them.
func (g *Graph) Edges() []*types.RelationshipEdge {
	return g.edges
}

// Edge returns the edge between a and b in either argument order.
func (g *Graph) Edge(a, b string) (*types.RelationshipEdge, bool) {
	a, b = types.EdgeKey(a, b)
	e, ok := g.index[[2]string{a, b}]
	return e, ok
}

// Weight returns the weight between a and b, zero when they share no edge.
func (g *Graph) Weight(a, b string) float64 {
	if e, ok := g.Edge(a, b); ok {
		return e.Weight
	}
	return 0
}

// Neighbor is one entry of a Neighbors listing.
type Neighbor struct {
	ID   string
	Edge *types.RelationshipEdge
}

// Neighbors lists the identities sharing an edge with id, strongest first.
func (g *Graph) Neighbors(id string) []Neighbor {
	adj := g.adjacency[id]
	out := make([]Neighbor, 0, len(adj))
	for _, e := range adj {
		out = append(out, Neighbor{ID: e.Other(id), Edge: e})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Edge.Weight != out[j].Edge.Weight {
			return out[i].Edge.Weight > out[j].Edge.Weight
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// TopEdges returns the n heaviest edges, ties broken by canonical order.
// A non-positive n returns every edge.
func (g *Graph) TopEdges(n int) []*types.RelationshipEdge {
	out := append([]*types.RelationshipEdge(nil), g.edges...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Weight > out[j].Weight
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
