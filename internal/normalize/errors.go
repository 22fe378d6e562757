package normalize

import (
	"errors"
	"fmt"

	"github.com/scrypster/contactgraph/internal/logging"
	"github.com/scrypster/contactgraph/pkg/types"
)

// ErrInvalidHandle is matched by every *InvalidHandleError via errors.Is.
var ErrInvalidHandle = errors.New("invalid handle")

// InvalidHandleError reports a single raw handle that failed normalization.
// It is recoverable: callers skip the handle and keep the rest of the record.
// The raw value is only ever rendered in redacted form.
type InvalidHandleError struct {
	Kind   types.HandleKind
	Raw    string
	Reason string
}

func (e *InvalidHandleError) Error() string {
	return fmt.Sprintf("invalid %s handle %s: %s", e.Kind, logging.Redact(e.Raw), e.Reason)
}

// Is makes errors.Is(err, ErrInvalidHandle) succeed.
func (e *InvalidHandleError) Is(target error) bool {
	return target == ErrInvalidHandle
}

func invalid(kind types.HandleKind, raw, reason string) *InvalidHandleError {
	return &InvalidHandleError{Kind: kind, Raw: raw, Reason: reason}
}
