package types

import (
	"sort"
	"time"
)

// SourceContribution is the evidence one source contributes to an edge.
type SourceContribution struct {
	Count           int       `json:"count" yaml:"count"`                                 // Interaction records in which the pair co-occurred
	GroupCount      int       `json:"group_count,omitempty" yaml:"group_count,omitempty"` // Of those, records with more than two participants
	Score           float64   `json:"score" yaml:"score"`                                 // Recency-weighted count
	LastInteraction time.Time `json:"last_interaction" yaml:"last_interaction"`           // Most recent co-occurrence from this source
}

// RelationshipEdge is an undirected weighted relation between two identities.
// PersonA always sorts before PersonB so each unordered pair has one key.
type RelationshipEdge struct {
	PersonA         string                           `json:"person_a" yaml:"person_a"`
	PersonB         string                           `json:"person_b" yaml:"person_b"`
	Weight          float64                          `json:"weight" yaml:"weight"` // Sum of per-source scores
	Sources         map[SourceTag]SourceContribution `json:"sources" yaml:"sources"`
	LastInteraction time.Time                        `json:"last_interaction" yaml:"last_interaction"`
}

// EdgeKey returns the canonical ordering of an identity pair.
func EdgeKey(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Other returns the endpoint opposite id, or "" if id is not an endpoint.
func (e *RelationshipEdge) Other(id string) string {
	switch id {
	case e.PersonA:
		return e.PersonB
	case e.PersonB:
		return e.PersonA
	}
	return ""
}

// Count returns the total number of co-occurrences across all sources.
func (e *RelationshipEdge) Count() int {
	n := 0
	for _, c := range e.Sources {
		n += c.Count
	}
	return n
}

// SourceTags returns the contributing sources in lexical order.
func (e *RelationshipEdge) SourceTags() []SourceTag {
	tags := make([]SourceTag, 0, len(e.Sources))
	for s := range e.Sources {
		tags = append(tags, s)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
