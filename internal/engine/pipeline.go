// Package engine orchestrates a full build: load extractor output, resolve
// identities, build the relationship graph, export a canonical snapshot and
// optionally persist it.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scrypster/contactgraph/internal/config"
	"github.com/scrypster/contactgraph/internal/export"
	"github.com/scrypster/contactgraph/internal/graph"
	"github.com/scrypster/contactgraph/internal/importer"
	"github.com/scrypster/contactgraph/internal/logging"
	"github.com/scrypster/contactgraph/internal/resolver"
	"github.com/scrypster/contactgraph/internal/storage"
	"github.com/scrypster/contactgraph/pkg/types"
)

// RunResult is the outcome of one pipeline run.
type RunResult struct {
	RunID        string
	StartedAt    time.Time
	Duration     time.Duration
	Inputs       int
	Stored       bool
	ResolveStats resolver.BatchStats
	BuildStats   graph.BuildStats
	Resolution   *resolver.Resolution
	Graph        *graph.Graph
	Snapshot     *export.Snapshot
}

// Pipeline runs builds. Runs are serialized: a Pipeline may be shared between
// the CLI and an input watcher.
type Pipeline struct {
	cfg    *config.Config
	store  storage.SnapshotStore
	loader *importer.Loader
	logger *zap.Logger

	// Label is stored with every persisted run.
	Label string

	now   func() time.Time
	newID func() string

	mu            sync.Mutex
	onRunComplete func(*RunResult)
}

// NewPipeline creates a pipeline. store may be nil, in which case snapshots
// are returned but not persisted.
func NewPipeline(cfg *config.Config, store storage.SnapshotStore, logger *zap.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid config: %w", err)
	}
	logger = logging.OrNop(logger)
	return &Pipeline{
		cfg:    cfg,
		store:  store,
		loader: importer.NewLoader(logger, 0),
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// SetOnRunComplete registers a callback invoked after every successful run.
func (p *Pipeline) SetOnRunComplete(fn func(*RunResult)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onRunComplete = fn
}

// RunDir discovers the extractor output files under dir and runs them.
func (p *Pipeline) RunDir(ctx context.Context, dir string) (*RunResult, error) {
	inputs, err := importer.Discover(dir)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, inputs)
}

// Run loads inputs and builds a snapshot. Contact records are resolved
// before interaction participants and sources are fed in a fixed order, so
// identity ids depend only on the input content.
func (p *Pipeline) Run(ctx context.Context, inputs []importer.Input) (*RunResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.now()
	result := &RunResult{
		RunID:     p.newID(),
		StartedAt: start,
		Inputs:    len(inputs),
	}
	log := p.logger.With(zap.String("run_id", result.RunID))

	batches, err := p.loader.Load(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("engine: load failed: %w", err)
	}
	orderBatches(batches)

	normalizer := p.cfg.Normalizer()
	res := resolver.New(normalizer, log)
	var interactions []types.InteractionRecord

	// Invalid participant handles are counted and logged by the builder.
	valid := func(h types.RawHandle) bool {
		_, err := normalizer.Normalize(h)
		return err == nil
	}

	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records := b.Contacts
		if b.Input.Kind == importer.KindInteractions {
			records = types.ContactObservations(b.Interactions, valid)
			interactions = append(interactions, b.Interactions...)
		}
		stats, err := res.Add(records)
		if err != nil {
			return nil, fmt.Errorf("engine: %s: %w", b.Input.Path, err)
		}
		result.ResolveStats.Merge(stats)
	}
	result.Resolution = res.Resolution()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	builder := graph.NewBuilder(normalizer, p.cfg.GraphPolicy(latestTimestamp(interactions)), log)
	g, buildStats, err := builder.Build(result.Resolution, interactions)
	if err != nil {
		return nil, fmt.Errorf("engine: build failed: %w", err)
	}
	result.Graph = g
	result.BuildStats = buildStats
	result.Snapshot = export.FromGraph(result.Resolution, g)

	if p.store != nil {
		run := storage.RunInfo{ID: result.RunID, Label: p.Label, CreatedAt: start}
		if err := p.store.SaveSnapshot(ctx, run, result.Snapshot); err != nil {
			return nil, fmt.Errorf("engine: failed to store snapshot: %w", err)
		}
		result.Stored = true
	}
	result.Duration = p.now().Sub(start)

	log.Info("engine: run complete",
		zap.Int("inputs", result.Inputs),
		zap.Int("identities", result.Resolution.Len()),
		zap.Int("merges", result.ResolveStats.Merges),
		zap.Int("threads", buildStats.Threads),
		zap.Int("edges", buildStats.Edges),
		zap.Int("skipped_records", buildStats.Skipped),
		zap.Bool("stored", result.Stored),
		zap.Duration("duration", result.Duration),
	)

	if p.onRunComplete != nil {
		p.onRunComplete(result)
	}
	return result, nil
}

// latestTimestamp returns the newest interaction timestamp, or the zero time
// when there are none.
func latestTimestamp(records []types.InteractionRecord) time.Time {
	var latest time.Time
	for i := range records {
		if ts := records[i].Timestamp.UTC(); ts.After(latest) {
			latest = ts
		}
	}
	return latest
}

// sourceRank orders known sources first, in types.KnownSources order.
func sourceRank(s types.SourceTag) int {
	for i, known := range types.KnownSources {
		if s == known {
			return i
		}
	}
	return len(types.KnownSources)
}

// orderBatches sorts batches by kind (contacts first), then source rank,
// source name and path.
func orderBatches(batches []importer.SourceBatch) {
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i].Input, batches[j].Input
		if (a.Kind == importer.KindContacts) != (b.Kind == importer.KindContacts) {
			return a.Kind == importer.KindContacts
		}
		if ra, rb := sourceRank(a.Source), sourceRank(b.Source); ra != rb {
			return ra < rb
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Path < b.Path
	})
}
