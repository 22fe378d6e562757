// Package storage persists exported graph snapshots so that a build can be
// inspected, compared or handed to downstream tools later.
//
// Backends store the snapshot relationally (identities, handles, aliases,
// threads, edges and their per-source breakdown) and reproduce it losslessly:
// loading a stored run and exporting it yields the bytes the build exported.
package storage

import (
	"context"

	"github.com/scrypster/contactgraph/internal/export"
)

// SnapshotStore stores and retrieves graph snapshots.
type SnapshotStore interface {
	// SaveSnapshot stores a snapshot under run.ID. Counts in run are filled
	// from the snapshot. Returns ErrInvalidInput for a missing id or snapshot.
	SaveSnapshot(ctx context.Context, run RunInfo, snapshot *export.Snapshot) error

	// LoadSnapshot retrieves a stored snapshot.
	// Returns ErrNotFound if the run doesn't exist.
	LoadSnapshot(ctx context.Context, runID string) (*export.Snapshot, error)

	// LatestSnapshot returns the most recently stored run and its snapshot.
	// Returns ErrNotFound if nothing has been stored.
	LatestSnapshot(ctx context.Context) (*RunInfo, *export.Snapshot, error)

	// ListRuns lists stored runs, newest first. limit <= 0 lists all.
	ListRuns(ctx context.Context, limit int) ([]RunInfo, error)

	// DeleteRun removes a stored run and all of its rows.
	// Returns ErrNotFound if the run doesn't exist.
	DeleteRun(ctx context.Context, runID string) error

	// Close releases the underlying connection.
	Close() error
}
