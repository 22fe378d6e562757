package types

import (
	"fmt"
	"time"
)

// ContactRecord is one per-source contact observation: every handle in it is
// asserted to belong to the same person.
type ContactRecord struct {
	Source  SourceTag   `json:"source" yaml:"source"`
	Name    string      `json:"name,omitempty" yaml:"name,omitempty"`
	Handles []RawHandle `json:"handles" yaml:"handles"`
}

// Validate checks the structural contract of the record. A nil handle set
// is a caller bug; an empty one is valid.
func (r *ContactRecord) Validate() error {
	if r.Handles == nil {
		return fmt.Errorf("%w: contact record from %q has nil handles", ErrContractViolation, r.Source)
	}
	return nil
}

// InteractionRecord describes one observed co-occurrence of participants,
// for example a chat message or a mail with its header addresses.
type InteractionRecord struct {
	Source         SourceTag   `json:"source" yaml:"source"`
	Timestamp      time.Time   `json:"timestamp" yaml:"timestamp"`
	ThreadID       string      `json:"thread_id,omitempty" yaml:"thread_id,omitempty"`
	Participants   []RawHandle `json:"participants,omitempty" yaml:"participants,omitempty"`
	ParticipantIDs []string    `json:"participant_ids,omitempty" yaml:"participant_ids,omitempty"`
}

// Validate checks the structural contract of the record. At least one of
// Participants or ParticipantIDs must be non-nil.
func (r *InteractionRecord) Validate() error {
	if r.Participants == nil && r.ParticipantIDs == nil {
		return fmt.Errorf("%w: interaction record from %q has nil participants", ErrContractViolation, r.Source)
	}
	return nil
}

// ContactObservations derives resolver input from interaction records so
// that every participant handle seen in an interaction gets an identity.
// Handles rejected by keep are left out; a nil keep accepts all of them.
func ContactObservations(records []InteractionRecord, keep func(RawHandle) bool) []ContactRecord {
	out := make([]ContactRecord, 0, len(records))
	for _, r := range records {
		for _, h := range r.Participants {
			if keep != nil && !keep(h) {
				continue
			}
			out = append(out, ContactRecord{
				Source:  r.Source,
				Handles: []RawHandle{h},
			})
		}
	}
	return out
}
