package overlay

import "context"

// Bridge is the positioning runtime that measures and places overlay content.
// Every call may fail; failures that should be treated as benign must wrap
// ErrCancelled or ErrDisconnected (or context.Canceled).
type Bridge interface {
	// Initialize prepares the runtime to render into the given container.
	Initialize(ctx context.Context, containerSelector string, flipMargin int) error
	// Connect starts tracking the content identified by id.
	Connect(ctx context.Context, id ID) error
	// Disconnect stops tracking the content identified by id.
	Disconnect(ctx context.Context, id ID) error
	// Dispose releases everything the runtime holds for this registry.
	Dispose(ctx context.Context) error
}
