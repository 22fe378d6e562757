package notify

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestEventWriterCreatesFile(t *testing.T) {
	dir := t.TempDir()
	w := NewEventWriter(dir)

	require.NoError(t, w.Notify(EventRunComplete, "3f2c9a4e-run"))

	entries, err := os.ReadDir(filepath.Join(dir, "events"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".event", filepath.Ext(entries[0].Name()))

	data, err := os.ReadFile(filepath.Join(w.Dir(), entries[0].Name()))
	require.NoError(t, err)

	var evt Event
	require.NoError(t, json.Unmarshal(data, &evt))
	assert.Equal(t, EventRunComplete, evt.Type)
	assert.Equal(t, "3f2c9a4e-run", evt.RunID)
	assert.NotZero(t, evt.Time)
}

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, "run_a_b_c", sanitizeID("run:a/b\\c"))
}

func startWatcher(t *testing.T, dir string, match func(string) bool) <-chan []string {
	t.Helper()
	received := make(chan []string, 4)
	w := NewInputWatcher(dir, 50*time.Millisecond, match, func(_ context.Context, changed []string) {
		received <- changed
	}, nil)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	// Give fsnotify a moment to register
	time.Sleep(50 * time.Millisecond)
	return received
}

func TestInputWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	received := startWatcher(t, dir, nil)

	path := filepath.Join(dir, "messages.jsonl")
	for i := 0; i < 3; i++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		require.NoError(t, err)
		_, err = f.WriteString("{}\n")
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	select {
	case changed := <-received:
		assert.Equal(t, []string{path}, changed)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for change callback")
	}

	select {
	case extra := <-received:
		t.Fatalf("expected a single callback, got another: %v", extra)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestInputWatcher_FiltersFiles(t *testing.T) {
	dir := t.TempDir()
	received := startWatcher(t, dir, func(p string) bool {
		return strings.HasSuffix(p, ".json")
	})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".contacts.json.swp"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contacts.json"), []byte("[]"), 0o600))

	select {
	case changed := <-received:
		assert.Equal(t, []string{filepath.Join(dir, "contacts.json")}, changed)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for change callback")
	}
}

func TestInputWatcher_StopIsClean(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := NewInputWatcher(t.TempDir(), 0, nil, nil, nil)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
}

func TestInputWatcher_MissingDir(t *testing.T) {
	w := NewInputWatcher(filepath.Join(t.TempDir(), "missing"), 0, nil, nil, nil)
	assert.Error(t, w.Start(context.Background()))
}
