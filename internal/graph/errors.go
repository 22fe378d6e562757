package graph

import (
	"errors"
	"fmt"

	"github.com/scrypster/contactgraph/pkg/types"
)

// ErrUnresolvedReference is matched by every *UnresolvedReferenceError.
var ErrUnresolvedReference = errors.New("unresolved reference")

// Reference kinds of an UnresolvedReferenceError.
const (
	RefIdentity = "identity"
	RefHandle   = "handle"
)

// UnresolvedReferenceError reports an interaction record citing an identity
// or handle the resolution does not know. The record is skipped; graph
// construction continues. Handle references are stored redacted.
type UnresolvedReferenceError struct {
	Source    types.SourceTag
	Kind      string
	Reference string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("%s record references unknown %s %s", e.Source, e.Kind, e.Reference)
}

// Is makes errors.Is(err, ErrUnresolvedReference) succeed.
func (e *UnresolvedReferenceError) Is(target error) bool {
	return target == ErrUnresolvedReference
}
