package types

// HandleKind is the kind of contact point a handle represents.
type HandleKind string

// Handle kind constants
const (
	HandleEmail HandleKind = "email"
	HandlePhone HandleKind = "phone"
)

// RawHandle is a contact point exactly as an extractor supplied it.
type RawHandle struct {
	Kind  HandleKind `json:"kind" yaml:"kind"`
	Value string     `json:"value" yaml:"value"`
}

// Handle is a normalized contact point. Value is the canonical form used for
// matching; Raw is the input it was derived from and is never exported.
type Handle struct {
	Kind  HandleKind `json:"kind" yaml:"kind"`
	Value string     `json:"value" yaml:"value"`
	Raw   string     `json:"-" yaml:"-"`
}

// Key returns the identity-matching key of the handle ("email:a@b.com").
func (h Handle) Key() string {
	return string(h.Kind) + ":" + h.Value
}

// Email builds a raw email handle.
func Email(value string) RawHandle {
	return RawHandle{Kind: HandleEmail, Value: value}
}

// Phone builds a raw phone handle.
func Phone(value string) RawHandle {
	return RawHandle{Kind: HandlePhone, Value: value}
}
