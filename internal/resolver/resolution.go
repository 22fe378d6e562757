package resolver

import (
	"sort"

	"github.com/scrypster/contactgraph/pkg/types"
)

// Resolution is a materialized identity table: identities sorted by id, a
// handle index, and the alias table of merged-away identifiers.
type Resolution struct {
	identities []*types.PersonIdentity
	byID       map[string]*types.PersonIdentity
	byHandle   map[string]string
	aliases    map[string]string
}

// NewResolution rebuilds a Resolution from exported identities, for example
// after loading a stored snapshot. Aliases listed on identities are merged
// into the alias table.
func NewResolution(identities []types.PersonIdentity, aliases map[string]string) *Resolution {
	res := &Resolution{
		byID:     make(map[string]*types.PersonIdentity, len(identities)),
		byHandle: make(map[string]string),
		aliases:  make(map[string]string, len(aliases)),
	}
	for i := range identities {
		p := identities[i]
		p.Handles = append([]types.Handle(nil), p.Handles...)
		p.Sources = append([]types.SourceTag(nil), p.Sources...)
		p.Aliases = append([]string(nil), p.Aliases...)
		p.Canonicalize()

		res.identities = append(res.identities, &p)
		res.byID[p.ID] = &p
		for _, h := range p.Handles {
			res.byHandle[h.Key()] = p.ID
		}
		for _, a := range p.Aliases {
			res.aliases[a] = p.ID
		}
	}
	for k, v := range aliases {
		res.aliases[k] = v
	}
	sort.Slice(res.identities, func(i, j int) bool {
		return res.identities[i].ID < res.identities[j].ID
	})
	return res
}

// Len returns the number of identities.
func (r *Resolution) Len() int {
	return len(r.identities)
}

// Identities returns the identities ordered by id. Callers must not mutate them.
func (r *Resolution) Identities() []*types.PersonIdentity {
	return r.identities
}

// Map returns the identities keyed by id.
func (r *Resolution) Map() map[string]*types.PersonIdentity {
	out := make(map[string]*types.PersonIdentity, len(r.byID))
	for k, v := range r.byID {
		out[k] = v
	}
	return out
}

// Aliases returns a copy of the alias table (absorbed id -> surviving id).
func (r *Resolution) Aliases() map[string]string {
	out := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}

// Canonical maps an identity id, live or merged away, to the id of the
// identity that currently owns it.
func (r *Resolution) Canonical(id string) (string, bool) {
	if _, ok := r.byID[id]; ok {
		return id, true
	}
	if survivor, ok := r.aliases[id]; ok {
		if _, live := r.byID[survivor]; live {
			return survivor, true
		}
	}
	return "", false
}

// Identity looks up an identity by id, following the alias table.
func (r *Resolution) Identity(id string) (*types.PersonIdentity, bool) {
	canonical, ok := r.Canonical(id)
	if !ok {
		return nil, false
	}
	return r.byID[canonical], true
}

// IdentityForHandle returns the identity owning a normalized handle.
func (r *Resolution) IdentityForHandle(h types.Handle) (*types.PersonIdentity, bool) {
	return r.IdentityForKey(h.Key())
}

// IdentityForKey returns the identity owning a handle key ("email:a@b.com").
func (r *Resolution) IdentityForKey(key string) (*types.PersonIdentity, bool) {
	id, ok := r.byHandle[key]
	if !ok {
		return nil, false
	}
	return r.byID[id], true
}
