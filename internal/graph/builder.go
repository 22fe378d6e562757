// Package graph folds interaction records into threads and a weighted,
// undirected relationship graph over resolved identities.
package graph

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/scrypster/contactgraph/internal/logging"
	"github.com/scrypster/contactgraph/internal/normalize"
	"github.com/scrypster/contactgraph/internal/resolver"
	"github.com/scrypster/contactgraph/pkg/types"
)

// Policy is the edge scoring policy. Each co-occurrence contributes
// RecencyMultiplier(timestamp, Now, HalfLife) to its source's score.
// A zero Now disables decay so builds do not depend on the wall clock.
type Policy struct {
	HalfLife time.Duration
	Now      time.Time
}

func (p Policy) multiplier(ts time.Time) float64 {
	if p.Now.IsZero() {
		return 1
	}
	return RecencyMultiplier(ts, p.Now, p.HalfLife)
}

// BuildStats summarizes a Build call.
type BuildStats struct {
	Records        int `json:"records"`
	Applied        int `json:"applied"`
	Skipped        int `json:"skipped"`         // Records with an unresolved reference
	InvalidHandles int `json:"invalid_handles"` // Participant handles that failed normalization
	Threads        int `json:"threads"`
	Edges          int `json:"edges"`
}

// Builder builds relationship graphs. It holds no per-build state and may be
// reused.
type Builder struct {
	normalizer normalize.Normalizer
	policy     Policy
	logger     *zap.Logger
}

// NewBuilder creates a Builder. The normalizer must be the one the
// resolution was produced with so participant handles match.
func NewBuilder(normalizer normalize.Normalizer, policy Policy, logger *zap.Logger) *Builder {
	return &Builder{
		normalizer: normalizer,
		policy:     policy,
		logger:     logging.OrNop(logger),
	}
}

// Build folds records into threads and edges. Records citing identities or
// handles absent from res are skipped and logged. A record with nil
// participants aborts the build with types.ErrContractViolation.
func (b *Builder) Build(res *resolver.Resolution, records []types.InteractionRecord) (*Graph, BuildStats, error) {
	var stats BuildStats
	if res == nil {
		return nil, stats, fmt.Errorf("graph: %w: nil resolution", types.ErrContractViolation)
	}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, stats, fmt.Errorf("graph: record %d: %w", i, err)
		}
	}

	threads := make(map[types.ThreadKey]*types.Thread)
	edges := make(map[[2]string]*types.RelationshipEdge)

	var applied []evidence
	for i := range records {
		rec := &records[i]
		stats.Records++
		source := types.ParseSourceTag(string(rec.Source))
		ts := rec.Timestamp.UTC()

		ids, err := b.participants(res, rec, source, &stats)
		if err != nil {
			stats.Skipped++
			b.logger.Warn("graph: skipping interaction record",
				zap.Int("record", i),
				zap.String("source", string(source)),
				zap.String("thread_id", rec.ThreadID),
				zap.Error(err),
			)
			continue
		}
		stats.Applied++

		ev := evidence{source: source, ts: ts, ids: ids}
		if rec.ThreadID != "" {
			ev.thread = foldThread(threads, source, rec.ThreadID, ts, ids)
		}
		applied = append(applied, ev)
	}

	// Threads are complete only after every record is folded, so pairs are
	// credited in a second pass.
	for _, ev := range applied {
		ids := ev.ids
		if ev.thread != nil {
			ids = ev.thread.Participants
		}
		if len(ids) < 2 {
			continue
		}
		score := b.policy.multiplier(ev.ts)
		group := len(ids) > 2
		for x := 0; x < len(ids); x++ {
			for y := x + 1; y < len(ids); y++ {
				addEvidence(edges, ids[x], ids[y], ev.source, ev.ts, score, group)
			}
		}
	}

	g := newGraph(threads, edges)
	stats.Threads = len(g.threads)
	stats.Edges = len(g.edges)

	b.logger.Info("graph: built relationship graph",
		zap.Int("records", stats.Records),
		zap.Int("applied", stats.Applied),
		zap.Int("skipped", stats.Skipped),
		zap.Int("threads", stats.Threads),
		zap.Int("edges", stats.Edges),
	)
	return g, stats, nil
}

// participants resolves a record to its distinct identity ids, sorted.
func (b *Builder) participants(res *resolver.Resolution, rec *types.InteractionRecord, source types.SourceTag, stats *BuildStats) ([]string, error) {
	seen := make(map[string]struct{}, len(rec.Participants)+len(rec.ParticipantIDs))
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, raw := range rec.Participants {
		h, err := b.normalizer.Normalize(raw)
		if err != nil {
			stats.InvalidHandles++
			b.logger.Warn("graph: skipping invalid participant handle",
				zap.String("source", string(source)),
				zap.String("kind", string(raw.Kind)),
				logging.Raw("handle", raw.Value),
				zap.Error(err),
			)
			continue
		}
		p, ok := res.IdentityForHandle(h)
		if !ok {
			return nil, &UnresolvedReferenceError{Source: source, Kind: RefHandle, Reference: logging.Redact(h.Key())}
		}
		add(p.ID)
	}
	for _, id := range rec.ParticipantIDs {
		canonical, ok := res.Canonical(id)
		if !ok {
			return nil, &UnresolvedReferenceError{Source: source, Kind: RefIdentity, Reference: id}
		}
		add(canonical)
	}

	sort.Strings(ids)
	return ids, nil
}

// evidence is an applied record waiting to be credited to its pairs.
type evidence struct {
	source types.SourceTag
	ts     time.Time
	ids    []string
	thread *types.Thread
}

func foldThread(threads map[types.ThreadKey]*types.Thread, source types.SourceTag, threadID string, ts time.Time, ids []string) *types.Thread {
	key := types.ThreadKey{Source: source, ID: threadID}
	t, ok := threads[key]
	if !ok {
		t = &types.Thread{ID: threadID, Source: source, LastActivity: ts}
		threads[key] = t
	}
	t.MessageCount++
	if ts.After(t.LastActivity) {
		t.LastActivity = ts
	}
	t.Participants = mergeSorted(t.Participants, ids)
	return t
}

func addEvidence(edges map[[2]string]*types.RelationshipEdge, a, b string, source types.SourceTag, ts time.Time, score float64, group bool) {
	a, b = types.EdgeKey(a, b)
	key := [2]string{a, b}
	e, ok := edges[key]
	if !ok {
		e = &types.RelationshipEdge{
			PersonA: a,
			PersonB: b,
			Sources: make(map[types.SourceTag]types.SourceContribution),
		}
		edges[key] = e
	}

	c := e.Sources[source]
	c.Count++
	if group {
		c.GroupCount++
	}
	c.Score += score
	if ts.After(c.LastInteraction) {
		c.LastInteraction = ts
	}
	e.Sources[source] = c

	if ts.After(e.LastInteraction) {
		e.LastInteraction = ts
	}
}

// edgeWeight sums per-source scores in source order so the float result is
// reproducible.
func edgeWeight(e *types.RelationshipEdge) float64 {
	var w float64
	for _, s := range e.SourceTags() {
		w += e.Sources[s].Score
	}
	return w
}

// mergeSorted returns the sorted union of two sorted id lists.
func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j == len(b) || (i < len(a) && a[i] < b[j]):
			out = append(out, a[i])
			i++
		case i == len(a) || b[j] < a[i]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
