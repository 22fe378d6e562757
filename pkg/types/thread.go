package types

import (
	"fmt"
	"sort"
	"time"
)

// Thread is a communication context: one chat, mail conversation or
// correspondence. Records sharing the same (source, thread id) fold into it.
type Thread struct {
	ID           string    `json:"id" yaml:"id"`
	Source       SourceTag `json:"source" yaml:"source"`
	Participants []string  `json:"participants" yaml:"participants"` // Identity IDs, sorted
	LastActivity time.Time `json:"last_activity" yaml:"last_activity"`
	MessageCount int       `json:"message_count" yaml:"message_count"`
}

// ThreadKey identifies a thread. Source tags and thread ids are free text, so
// the key keeps them as separate fields.
type ThreadKey struct {
	Source SourceTag
	ID     string
}

func (k ThreadKey) String() string {
	return fmt.Sprintf("%s:%q", k.Source, k.ID)
}

// Key returns the (source, thread id) folding key.
func (t *Thread) Key() ThreadKey {
	return ThreadKey{Source: t.Source, ID: t.ID}
}

// Canonicalize sorts the participant list.
func (t *Thread) Canonicalize() {
	sort.Strings(t.Participants)
}
