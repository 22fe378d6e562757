// Package notify connects contactgraph to the filesystem: it watches the
// extractor output directory for changes and announces stored runs to
// downstream tools through event files.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Event types
const (
	EventRunComplete = "run_complete"
)

// Event is the payload written to an event file.
type Event struct {
	Type  string `json:"type"`
	RunID string `json:"run_id"`
	Time  int64  `json:"time"`
}

// EventWriter writes notification event files to a shared directory.
type EventWriter struct {
	dir string
	now func() time.Time
}

// NewEventWriter creates a writer that emits events to {dataPath}/events/.
func NewEventWriter(dataPath string) *EventWriter {
	return &EventWriter{dir: filepath.Join(dataPath, "events"), now: time.Now}
}

// Dir returns the event directory.
func (w *EventWriter) Dir() string {
	return w.dir
}

// Notify writes an event file with the given type.
// Safe to call concurrently. Errors are returned but not fatal.
func (w *EventWriter) Notify(eventType, runID string) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", w.dir, err)
	}
	evt := Event{
		Type:  eventType,
		RunID: runID,
		Time:  w.now().UnixNano(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}

	// Write then rename so readers never see a partial file.
	name := fmt.Sprintf("%d-%s.event", evt.Time, sanitizeID(runID))
	tmp := filepath.Join(w.dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("notify: write event: %w", err)
	}
	return os.Rename(tmp, filepath.Join(w.dir, name))
}

// sanitizeID replaces characters unsafe for filenames.
func sanitizeID(id string) string {
	out := make([]byte, len(id))
	for i := 0; i < len(id); i++ {
		if id[i] == '/' || id[i] == ':' || id[i] == '\\' {
			out[i] = '_'
		} else {
			out[i] = id[i]
		}
	}
	return string(out)
}
