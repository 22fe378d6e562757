package types

import "sort"

// PersonIdentity represents one person resolved across data sources.
// Every normalized handle belongs to exactly one identity; identities are
// never deleted, only merged, and the absorbed identifiers are kept in
// Aliases so stale references stay resolvable.
type PersonIdentity struct {
	ID            string      `json:"id" yaml:"id"`                                         // Stable identifier (format: person:NNNNNN)
	DisplayName   string      `json:"display_name,omitempty" yaml:"display_name,omitempty"` // Preferred display name
	Handles       []Handle    `json:"handles" yaml:"handles"`                               // Normalized handles, sorted by key
	Sources       []SourceTag `json:"sources" yaml:"sources"`                               // Contributing source tags, sorted
	ContactExists bool        `json:"contact_exists" yaml:"contact_exists"`                 // True if an address book record contributed
	Aliases       []string    `json:"aliases,omitempty" yaml:"aliases,omitempty"`           // Identifiers merged into this identity
}

// HasSource reports whether the given source contributed to the identity.
func (p *PersonIdentity) HasSource(source SourceTag) bool {
	for _, s := range p.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// HandleKeys returns the matching keys of all handles in order.
func (p *PersonIdentity) HandleKeys() []string {
	keys := make([]string, len(p.Handles))
	for i, h := range p.Handles {
		keys[i] = h.Key()
	}
	return keys
}

// Canonicalize sorts handles by key and sources and aliases lexically, the
// order every exported identity uses.
func (p *PersonIdentity) Canonicalize() {
	sort.Slice(p.Handles, func(i, j int) bool {
		return p.Handles[i].Key() < p.Handles[j].Key()
	})
	sort.Slice(p.Sources, func(i, j int) bool {
		return p.Sources[i] < p.Sources[j]
	})
	sort.Strings(p.Aliases)
}
