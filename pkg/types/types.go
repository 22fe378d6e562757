// Package types defines the core data structures for contactgraph.
// These types represent contact handles, resolved person identities,
// conversation threads and the weighted relationships between people,
// together with the raw records external extractors hand to the core.
package types

import (
	"errors"
	"strings"
)

// SourceTag identifies the upstream collaborator that produced a record.
type SourceTag string

// Source tag constants
const (
	// SourceMessages marks records from the local chat database extractor
	SourceMessages SourceTag = "messages"

	// SourceMail marks records from the mail archive extractor
	SourceMail SourceTag = "mail"

	// SourceContacts marks records from the address book parser
	SourceContacts SourceTag = "contacts"
)

// KnownSources lists the source tags produced by the bundled extractors, in
// the order the pipeline feeds them to the resolver.
var KnownSources = []SourceTag{
	SourceContacts,
	SourceMessages,
	SourceMail,
}

// ParseSourceTag canonicalizes a source tag. Unknown tags are accepted and
// carried through lower-cased so third-party extractors can add their own.
func ParseSourceTag(s string) SourceTag {
	return SourceTag(strings.ToLower(strings.TrimSpace(s)))
}

// IsKnown reports whether the tag is one of KnownSources.
func (s SourceTag) IsKnown() bool {
	for _, known := range KnownSources {
		if s == known {
			return true
		}
	}
	return false
}

// ErrContractViolation indicates that a caller passed structurally invalid
// input (for example a record whose handle set is nil rather than empty).
// Unlike dirty real-world data it is never skipped: the batch is aborted.
var ErrContractViolation = errors.New("contract violation")
