package overlay

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Sentinel errors. Bridges wrap ErrCancelled or ErrDisconnected so that
// Classify can tell benign environment loss from real failures.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrCancelled       = errors.New("bridge call cancelled")
	ErrDisconnected    = errors.New("bridge disconnected")
)

// Kind classifies a bridge failure.
type Kind int

const (
	// KindOther is any failure that is not explicitly benign.
	KindOther Kind = iota
	// KindCancelled means the caller's environment was torn down mid-call.
	KindCancelled
	// KindDisconnected means the bridge briefly lost the host runtime.
	KindDisconnected
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindCancelled:
		return "cancelled"
	case KindDisconnected:
		return "disconnected"
	default:
		return "other"
	}
}

// Classify maps a raw failure to its Kind.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrDisconnected):
		return KindDisconnected
	default:
		return KindOther
	}
}

// IsKind reports whether err is non-nil and classified as one of kinds.
// Each call site passes its own allow-list.
func IsKind(err error, kinds ...Kind) bool {
	if err == nil {
		return false
	}
	return slices.Contains(kinds, Classify(err))
}

// BridgeError records a failed bridge operation.
type BridgeError struct {
	Op  string // "initialize", "connect", "disconnect" or "dispose"
	ID  ID     // Empty for registry-level operations
	Err error
}

func (e *BridgeError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("bridge %s [%s]: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("bridge %s: %v", e.Op, e.Err)
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

func invalidArgument(name string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidArgument, name)
}
