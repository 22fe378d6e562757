// Package resolver merges raw contact handles observed by several sources
// into deduplicated person identities.
//
// Handles are the elements of a disjoint-set forest keyed by their
// normalized form. Handles that co-occur in one record are unioned, and a
// record that touches an existing identity is unioned into it. Identifiers
// are handed out in first-appearance order and survive merges: the
// earliest-created identity absorbs the other, whose identifier moves to the
// alias table.
package resolver

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/scrypster/contactgraph/internal/logging"
	"github.com/scrypster/contactgraph/internal/normalize"
	"github.com/scrypster/contactgraph/pkg/types"
)

// IDPrefix prefixes every identity identifier.
const IDPrefix = "person:"

// FormatID renders the n-th identity identifier.
func FormatID(n int) string {
	return fmt.Sprintf("%s%06d", IDPrefix, n)
}

// BatchStats summarizes one Add call.
type BatchStats struct {
	Records        int `json:"records"`         // Records seen
	Accepted       int `json:"accepted"`        // Records that contributed to an identity
	Dropped        int `json:"dropped"`         // Records with no valid handle and no name
	InvalidHandles int `json:"invalid_handles"` // Handles that failed normalization
	Created        int `json:"created"`         // Identities created
	Merges         int `json:"merges"`          // Identities absorbed into another
}

// Merge accumulates another batch's counters.
func (s *BatchStats) Merge(o BatchStats) {
	s.Records += o.Records
	s.Accepted += o.Accepted
	s.Dropped += o.Dropped
	s.InvalidHandles += o.InvalidHandles
	s.Created += o.Created
	s.Merges += o.Merges
}

type nameCandidate struct {
	seq  int
	name string
}

func earlier(a, b nameCandidate) nameCandidate {
	if a.name == "" || (b.name != "" && b.seq < a.seq) {
		return b
	}
	return a
}

// identitySet is the per-root state of a disjoint set.
type identitySet struct {
	order         int
	id            string
	handles       []types.Handle
	sources       map[types.SourceTag]struct{}
	contactName   nameCandidate
	firstName     nameCandidate
	contactExists bool
	aliases       []string
}

// Resolver accumulates contact records across any number of sequential
// batches. It is not safe for concurrent use.
type Resolver struct {
	normalizer normalize.Normalizer
	logger     *zap.Logger

	forest  disjointSet
	index   map[string]int // handle key -> element
	sets    map[int]*identitySet
	aliases map[string]string

	seq    int
	nextID int
}

// New creates an empty Resolver.
func New(normalizer normalize.Normalizer, logger *zap.Logger) *Resolver {
	return &Resolver{
		normalizer: normalizer,
		logger:     logging.OrNop(logger),
		index:      make(map[string]int),
		sets:       make(map[int]*identitySet),
		aliases:    make(map[string]string),
	}
}

// Normalizer returns the handle policy the resolver matches with.
func (r *Resolver) Normalizer() normalize.Normalizer {
	return r.normalizer
}

// Resolve is a convenience wrapper resolving a single batch.
func Resolve(records []types.ContactRecord, normalizer normalize.Normalizer, logger *zap.Logger) (*Resolution, BatchStats, error) {
	r := New(normalizer, logger)
	stats, err := r.Add(records)
	if err != nil {
		return nil, stats, err
	}
	return r.Resolution(), stats, nil
}

// Add folds a batch of records into the identity table. Malformed handles
// and empty records are skipped and logged. A record violating the caller
// contract aborts the batch before anything is applied.
func (r *Resolver) Add(records []types.ContactRecord) (BatchStats, error) {
	var stats BatchStats
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return stats, fmt.Errorf("resolver: record %d: %w", i, err)
		}
	}

	for i := range records {
		r.addRecord(&records[i], &stats)
	}

	r.logger.Debug("resolver: batch applied",
		zap.Int("records", stats.Records),
		zap.Int("accepted", stats.Accepted),
		zap.Int("dropped", stats.Dropped),
		zap.Int("invalid_handles", stats.InvalidHandles),
		zap.Int("created", stats.Created),
		zap.Int("merges", stats.Merges),
	)
	return stats, nil
}

func (r *Resolver) addRecord(rec *types.ContactRecord, stats *BatchStats) {
	r.seq++
	stats.Records++

	source := types.ParseSourceTag(string(rec.Source))
	name := strings.TrimSpace(rec.Name)

	handles := make([]types.Handle, 0, len(rec.Handles))
	seen := make(map[string]struct{}, len(rec.Handles))
	for _, raw := range rec.Handles {
		h, err := r.normalizer.Normalize(raw)
		if err != nil {
			stats.InvalidHandles++
			r.logger.Warn("resolver: skipping invalid handle",
				zap.String("source", string(source)),
				zap.String("kind", string(raw.Kind)),
				logging.Raw("handle", raw.Value),
				zap.Error(err),
			)
			continue
		}
		if _, dup := seen[h.Key()]; dup {
			continue
		}
		seen[h.Key()] = struct{}{}
		handles = append(handles, h)
	}

	if len(handles) == 0 && name == "" {
		stats.Dropped++
		r.logger.Warn("resolver: dropping record with no valid handle and no name",
			zap.String("source", string(source)),
			zap.Int("raw_handles", len(rec.Handles)),
		)
		return
	}

	target := r.targetFor(handles, stats)
	for _, h := range handles {
		if _, known := r.index[h.Key()]; known {
			continue
		}
		el := r.forest.add()
		r.forest.attach(el, target)
		r.index[h.Key()] = el
		r.sets[target].handles = append(r.sets[target].handles, h)
	}

	set := r.sets[target]
	set.sources[source] = struct{}{}
	if source == types.SourceContacts {
		set.contactExists = true
		set.contactName = earlier(set.contactName, nameCandidate{seq: r.seq, name: name})
	}
	set.firstName = earlier(set.firstName, nameCandidate{seq: r.seq, name: name})
	stats.Accepted++
}

// targetFor returns the root the record's handles end up in, merging every
// identity the record touches into the earliest-created one.
func (r *Resolver) targetFor(handles []types.Handle, stats *BatchStats) int {
	var roots []int
	for _, h := range handles {
		el, ok := r.index[h.Key()]
		if !ok {
			continue
		}
		root := r.forest.find(el)
		dup := false
		for _, existing := range roots {
			if existing == root {
				dup = true
				break
			}
		}
		if !dup {
			roots = append(roots, root)
		}
	}

	if len(roots) == 0 {
		return r.newSet(stats)
	}

	sort.Slice(roots, func(i, j int) bool {
		return r.sets[roots[i]].order < r.sets[roots[j]].order
	})
	target := roots[0]
	for _, other := range roots[1:] {
		r.merge(other, target)
		stats.Merges++
	}
	return target
}

func (r *Resolver) newSet(stats *BatchStats) int {
	r.nextID++
	root := r.forest.add()
	r.sets[root] = &identitySet{
		order:   r.nextID,
		id:      FormatID(r.nextID),
		sources: make(map[types.SourceTag]struct{}),
	}
	stats.Created++
	return root
}

// merge folds the set rooted at from into the set rooted at into.
func (r *Resolver) merge(from, into int) {
	src, dst := r.sets[from], r.sets[into]
	r.forest.attach(from, into)

	dst.handles = append(dst.handles, src.handles...)
	for s := range src.sources {
		dst.sources[s] = struct{}{}
	}
	dst.contactExists = dst.contactExists || src.contactExists
	dst.contactName = earlier(dst.contactName, src.contactName)
	dst.firstName = earlier(dst.firstName, src.firstName)

	dst.aliases = append(dst.aliases, src.id)
	dst.aliases = append(dst.aliases, src.aliases...)
	r.aliases[src.id] = dst.id
	for _, a := range src.aliases {
		r.aliases[a] = dst.id
	}

	delete(r.sets, from)
	r.logger.Debug("resolver: merged identities",
		zap.String("from", src.id),
		zap.String("into", dst.id),
	)
}

// Len returns the number of live identities.
func (r *Resolver) Len() int {
	return len(r.sets)
}

// Resolution materializes the current identity table. The resolver can keep
// accepting batches afterwards; the returned value is an independent copy.
func (r *Resolver) Resolution() *Resolution {
	res := &Resolution{
		byID:     make(map[string]*types.PersonIdentity, len(r.sets)),
		byHandle: make(map[string]string, len(r.index)),
		aliases:  make(map[string]string, len(r.aliases)),
	}

	for _, set := range r.sets {
		p := &types.PersonIdentity{
			ID:            set.id,
			Handles:       append([]types.Handle(nil), set.handles...),
			ContactExists: set.contactExists,
		}
		if set.contactName.name != "" {
			p.DisplayName = set.contactName.name
		} else {
			p.DisplayName = set.firstName.name
		}
		for s := range set.sources {
			p.Sources = append(p.Sources, s)
		}
		if len(set.aliases) > 0 {
			p.Aliases = append([]string(nil), set.aliases...)
		}
		p.Canonicalize()

		res.identities = append(res.identities, p)
		res.byID[p.ID] = p
		for _, h := range p.Handles {
			res.byHandle[h.Key()] = p.ID
		}
	}
	sort.Slice(res.identities, func(i, j int) bool {
		return res.identities[i].ID < res.identities[j].ID
	})
	for k, v := range r.aliases {
		res.aliases[k] = v
	}
	return res
}
