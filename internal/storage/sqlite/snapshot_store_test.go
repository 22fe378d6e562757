package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/contactgraph/internal/export"
	"github.com/scrypster/contactgraph/internal/storage"
	"github.com/scrypster/contactgraph/pkg/types"
)

// newTestStore creates an in-memory SQLite store for testing.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleSnapshot() *export.Snapshot {
	t1 := time.Date(2024, 3, 1, 9, 30, 0, 123456789, time.UTC)
	t2 := time.Date(2024, 5, 17, 22, 5, 1, 7, time.FixedZone("CET", 3600))

	s := &export.Snapshot{
		Version: export.FormatVersion,
		Identities: []types.PersonIdentity{
			{
				ID:            "person:000001",
				DisplayName:   "Alice Example",
				Handles:       []types.Handle{{Kind: types.HandleEmail, Value: "alice@example.com"}, {Kind: types.HandlePhone, Value: "+15551234567"}},
				Sources:       []types.SourceTag{types.SourceContacts, types.SourceMessages},
				ContactExists: true,
				Aliases:       []string{"person:000003"},
			},
			{
				ID:      "person:000002",
				Handles: []types.Handle{{Kind: types.HandleEmail, Value: "bob@example.com"}},
				Sources: []types.SourceTag{types.SourceMail},
			},
			{
				ID:          "person:000004",
				DisplayName: "Carol",
				Handles:     []types.Handle{},
				Sources:     []types.SourceTag{types.SourceContacts},
			},
		},
		Threads: []types.Thread{
			{ID: "chat-1", Source: types.SourceMessages, Participants: []string{"person:000001", "person:000002"}, LastActivity: t2, MessageCount: 3},
			{ID: "mail-7", Source: types.SourceMail, Participants: []string{"person:000002"}, LastActivity: t1, MessageCount: 1},
		},
		Edges: []types.RelationshipEdge{
			{
				PersonA: "person:000001",
				PersonB: "person:000002",
				Weight:  1.7320508075688772,
				Sources: map[types.SourceTag]types.SourceContribution{
					types.SourceMessages: {Count: 2, Score: 0.7320508075688772, LastInteraction: t2},
					types.SourceMail:     {Count: 1, GroupCount: 1, Score: 1, LastInteraction: t1},
				},
				LastInteraction: t2,
			},
		},
		Aliases: map[string]string{"person:000003": "person:000001"},
	}
	s.Canonicalize()
	return s
}

func TestSaveAndLoadSnapshot_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want, err := export.Marshal(sampleSnapshot(), export.FormatJSON)
	require.NoError(t, err)

	require.NoError(t, store.SaveSnapshot(ctx, storage.RunInfo{ID: "run-1", Label: "first"}, sampleSnapshot()))

	loaded, err := store.LoadSnapshot(ctx, "run-1")
	require.NoError(t, err)

	got, err := export.Marshal(loaded, export.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestSaveSnapshot_Empty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSnapshot(ctx, storage.RunInfo{ID: "empty"}, &export.Snapshot{}))

	loaded, err := store.LoadSnapshot(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, export.FormatVersion, loaded.Version)
	assert.Empty(t, loaded.Identities)
	assert.NotNil(t, loaded.Identities)
	assert.Empty(t, loaded.Edges)
	assert.NotNil(t, loaded.Aliases)
}

func TestSaveSnapshot_InvalidInput(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.SaveSnapshot(ctx, storage.RunInfo{ID: "run-1"}, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.SaveSnapshot(ctx, storage.RunInfo{ID: "  "}, sampleSnapshot())
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	require.NoError(t, store.SaveSnapshot(ctx, storage.RunInfo{ID: "run-1"}, sampleSnapshot()))
	err = store.SaveSnapshot(ctx, storage.RunInfo{ID: "run-1"}, sampleSnapshot())
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestSaveSnapshot_DuplicateHandleRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s := sampleSnapshot()
	s.Identities[1].Handles = append(s.Identities[1].Handles, s.Identities[0].Handles[0])

	err := store.SaveSnapshot(ctx, storage.RunInfo{ID: "bad"}, s)
	require.Error(t, err)

	_, err = store.LoadSnapshot(ctx, "bad")
	assert.ErrorIs(t, err, storage.ErrNotFound, "failed save must not leave a partial run")
}

func TestLoadSnapshot_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.LoadSnapshot(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListRunsAndLatest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.LatestSnapshot(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		run := storage.RunInfo{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, store.SaveSnapshot(ctx, run, sampleSnapshot()))
	}

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "a", runs[2].ID)
	assert.Equal(t, 3, runs[0].Identities)
	assert.Equal(t, 2, runs[0].Threads)
	assert.Equal(t, 1, runs[0].Edges)
	assert.True(t, runs[0].CreatedAt.Equal(base.Add(2*time.Hour)))

	runs, err = store.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	info, snapshot, err := store.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", info.ID)
	assert.Len(t, snapshot.Identities, 3)
}

func TestDeleteRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSnapshot(ctx, storage.RunInfo{ID: "run-1"}, sampleSnapshot()))
	require.NoError(t, store.DeleteRun(ctx, "run-1"))

	for _, table := range []string{"identities", "identity_handles", "identity_aliases", "threads", "thread_participants", "edges", "edge_sources"} {
		var n int
		require.NoError(t, store.DB().QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Zero(t, n, table)
	}

	assert.ErrorIs(t, store.DeleteRun(ctx, "run-1"), storage.ErrNotFound)
}

func TestNewStore_FilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contactgraph.db")
	ctx := context.Background()

	store, err := NewStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(ctx, storage.RunInfo{ID: "run-1"}, sampleSnapshot()))
	require.NoError(t, store.Close())

	reopened, err := NewStore(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	runs, err := reopened.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
}

func TestDBPathFromDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"", ""},
		{":memory:", ""},
		{"file::memory:?cache=shared", ""},
		{"/tmp/graph.db", "/tmp/graph.db"},
		{"file:/tmp/graph.db?mode=rwc", "/tmp/graph.db"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dbPathFromDSN(tt.dsn), tt.dsn)
	}
}
