package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/contactgraph/internal/config"
	"github.com/scrypster/contactgraph/internal/export"
	"github.com/scrypster/contactgraph/internal/graph"
	"github.com/scrypster/contactgraph/internal/normalize"
	"github.com/scrypster/contactgraph/internal/storage/sqlite"
	"github.com/scrypster/contactgraph/pkg/types"
)

const contactsJSON = `[
  {"name": "Alice", "handles": [{"kind": "email", "value": "Alice@Example.com"}, {"kind": "phone", "value": "(555) 123-4567"}]},
  {"name": "Bob", "handles": [{"kind": "email", "value": "bob@example.com"}]}
]`

const messagesJSONL = `{"timestamp": "2024-01-01T10:00:00Z", "thread_id": "c1", "participants": [{"kind": "phone", "value": "+1 555 123 4567"}, {"kind": "email", "value": "bob@example.com"}]}
{"timestamp": "2024-01-02T10:00:00Z", "thread_id": "c1", "participants": [{"kind": "phone", "value": "555-123-4567"}, {"kind": "email", "value": "carol@example.com"}, {"kind": "email", "value": "BOB@example.com"}]}
`

const mailYAML = `- timestamp: 2024-02-01T00:00:00Z
  thread_id: m1
  participants:
    - {kind: email, value: alice@example.com}
    - {kind: email, value: bob@example.com}
`

func writeInputs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

func testConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{StorageEngine: config.EngineNone},
		Phone:   normalize.DefaultPhoneOptions,
	}
}

func newTestPipeline(t *testing.T, cfg *config.Config) *Pipeline {
	t.Helper()
	p, err := NewPipeline(cfg, nil, nil)
	require.NoError(t, err)
	p.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	return p
}

func TestPipeline_Run(t *testing.T) {
	dir := writeInputs(t, map[string]string{
		"contacts.json":  contactsJSON,
		"messages.jsonl": messagesJSONL,
		"mail.yaml":      mailYAML,
	})
	p := newTestPipeline(t, testConfig())

	result, err := p.RunDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Inputs)
	assert.False(t, result.Stored)
	assert.NotEmpty(t, result.RunID)

	s := result.Snapshot
	require.Len(t, s.Identities, 3)

	alice := s.Identities[0]
	assert.Equal(t, "person:000001", alice.ID)
	assert.Equal(t, "Alice", alice.DisplayName)
	assert.True(t, alice.ContactExists)
	assert.Equal(t, []types.SourceTag{types.SourceContacts, types.SourceMail, types.SourceMessages}, alice.Sources)
	assert.Equal(t, []string{"email:alice@example.com", "phone:+15551234567"}, alice.HandleKeys())

	carol := s.Identities[2]
	assert.Equal(t, "person:000003", carol.ID)
	assert.False(t, carol.ContactExists)
	assert.Empty(t, carol.DisplayName)

	require.Len(t, s.Threads, 2)
	assert.Equal(t, types.SourceMail, s.Threads[0].Source)
	assert.Equal(t, 2, s.Threads[1].MessageCount)

	require.Len(t, s.Edges, 3)
	ab := s.Edges[0]
	assert.Equal(t, "person:000001", ab.PersonA)
	assert.Equal(t, "person:000002", ab.PersonB)
	assert.InDelta(t, 3.0, ab.Weight, 1e-12)
	assert.Equal(t, 2, ab.Sources[types.SourceMessages].Count)
	assert.Equal(t, 2, ab.Sources[types.SourceMessages].GroupCount, "both c1 records credit the whole thread")
	assert.Equal(t, 1, ab.Sources[types.SourceMail].Count)

	neighbors := result.Graph.Neighbors("person:000001")
	require.Len(t, neighbors, 2)
	assert.Equal(t, "person:000002", neighbors[0].ID)
}

func TestPipeline_Deterministic(t *testing.T) {
	dir := writeInputs(t, map[string]string{
		"contacts.json":  contactsJSON,
		"messages.jsonl": messagesJSONL,
		"mail.yaml":      mailYAML,
	})

	encode := func() []byte {
		p := newTestPipeline(t, testConfig())
		result, err := p.RunDir(context.Background(), dir)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, export.Encode(&buf, result.Snapshot, export.FormatJSON))
		return buf.Bytes()
	}
	assert.Equal(t, string(encode()), string(encode()))
}

func TestPipeline_DefaultDecayIgnoresClock(t *testing.T) {
	dir := writeInputs(t, map[string]string{
		"contacts.json":  contactsJSON,
		"messages.jsonl": messagesJSONL,
		"mail.yaml":      mailYAML,
	})
	cfg := testConfig()
	cfg.Graph.HalfLife = graph.DefaultHalfLife

	encode := func(now time.Time) []byte {
		p := newTestPipeline(t, cfg)
		p.now = func() time.Time { return now }
		result, err := p.RunDir(context.Background(), dir)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, export.Encode(&buf, result.Snapshot, export.FormatJSON))
		return buf.Bytes()
	}
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, string(encode(day)), string(encode(day.Add(24*time.Hour))))
	assert.Equal(t, string(encode(day)), string(encode(day.AddDate(1, 0, 0))))
}

func TestPipeline_DefaultDecayRelativeToNewestInteraction(t *testing.T) {
	dir := writeInputs(t, map[string]string{
		"contacts.json":  contactsJSON,
		"messages.jsonl": messagesJSONL,
		"mail.yaml":      mailYAML,
	})
	cfg := testConfig()
	cfg.Graph.HalfLife = graph.DefaultHalfLife

	result, err := newTestPipeline(t, cfg).RunDir(context.Background(), dir)
	require.NoError(t, err)

	ab, ok := result.Graph.Edge("person:000001", "person:000002")
	require.True(t, ok)
	assert.InDelta(t, 1.0, ab.Sources[types.SourceMail].Score, 1e-12, "the newest interaction is not decayed")
	assert.Less(t, ab.Sources[types.SourceMessages].Score, 2.0)
	assert.Greater(t, ab.Sources[types.SourceMessages].Score, 0.0)
}

func TestPipeline_InvalidParticipantCountedOnce(t *testing.T) {
	dir := writeInputs(t, map[string]string{
		"messages.jsonl": `{"timestamp": "2024-01-01T10:00:00Z", "participants": [{"kind": "email", "value": "a@example.com"}, {"kind": "phone", "value": "call me!"}, {"kind": "email", "value": "b@example.com"}]}
`,
	})

	result, err := newTestPipeline(t, testConfig()).RunDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ResolveStats.InvalidHandles)
	assert.Equal(t, 0, result.ResolveStats.Dropped)
	assert.Equal(t, 1, result.BuildStats.InvalidHandles)
	assert.Len(t, result.Snapshot.Edges, 1)
}

func TestPipeline_DecayUsesReferenceTime(t *testing.T) {
	dir := writeInputs(t, map[string]string{"mail.yaml": mailYAML})

	cfg := testConfig()
	cfg.Graph.HalfLife = 24 * time.Hour
	cfg.Graph.ReferenceTime = time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	cfg.Graph.FixedTime = true

	result, err := newTestPipeline(t, cfg).RunDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, result.Snapshot.Edges, 1)
	assert.InDelta(t, 0.5, result.Snapshot.Edges[0].Weight, 1e-12)
}

func TestPipeline_StoresSnapshot(t *testing.T) {
	dir := writeInputs(t, map[string]string{
		"contacts.json":  contactsJSON,
		"messages.jsonl": messagesJSONL,
	})

	store, err := sqlite.NewStore(":memory:", nil)
	require.NoError(t, err)
	defer store.Close()

	p, err := NewPipeline(testConfig(), store, nil)
	require.NoError(t, err)
	p.Label = "nightly"

	var completed *RunResult
	p.SetOnRunComplete(func(r *RunResult) { completed = r })

	result, err := p.RunDir(context.Background(), dir)
	require.NoError(t, err)
	assert.True(t, result.Stored)
	assert.Same(t, result, completed)

	info, loaded, err := store.LatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.RunID, info.ID)
	assert.Equal(t, "nightly", info.Label)

	want, err := export.Marshal(result.Snapshot, export.FormatJSON)
	require.NoError(t, err)
	got, err := export.Marshal(loaded, export.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestPipeline_ContractViolationAborts(t *testing.T) {
	dir := writeInputs(t, map[string]string{
		"messages.json": `[{"timestamp": "2024-01-01T00:00:00Z", "thread_id": "x"}]`,
	})

	_, err := newTestPipeline(t, testConfig()).RunDir(context.Background(), dir)
	assert.ErrorIs(t, err, types.ErrContractViolation)
}

func TestPipeline_EmptyInput(t *testing.T) {
	result, err := newTestPipeline(t, testConfig()).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Snapshot.Identities)
	assert.Empty(t, result.Snapshot.Edges)
}

func TestNewPipeline_RejectsInvalidConfig(t *testing.T) {
	_, err := NewPipeline(nil, nil, nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Storage.StorageEngine = "cassandra"
	_, err = NewPipeline(cfg, nil, nil)
	assert.Error(t, err)
}

func TestOrderBatches(t *testing.T) {
	dir := writeInputs(t, map[string]string{
		"aaa.json":      `[{"timestamp": "2024-01-01T00:00:00Z", "participants": [{"kind": "email", "value": "zed@example.com"}]}]`,
		"contacts.json": `[{"name": "Yan", "handles": [{"kind": "email", "value": "yan@example.com"}]}]`,
	})
	result, err := newTestPipeline(t, testConfig()).RunDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, result.Snapshot.Identities, 2)
	assert.Equal(t, "Yan", result.Snapshot.Identities[0].DisplayName)
	assert.Equal(t, []types.SourceTag{"aaa"}, result.Snapshot.Identities[1].Sources)
}
