package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// RunInfo describes one stored snapshot.
type RunInfo struct {
	ID         string    `json:"id"`                // Run identifier (uuid)
	Label      string    `json:"label,omitempty"`   // Free-form label given at build time
	CreatedAt  time.Time `json:"created_at"`        // When the snapshot was stored
	Identities int       `json:"identities"`        // Number of identities in the snapshot
	Threads    int       `json:"threads"`           // Number of threads in the snapshot
	Edges      int       `json:"edges"`             // Number of edges in the snapshot
}
