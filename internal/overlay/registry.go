package overlay

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
)

// initState tracks the one-time bridge initialization.
type initState int

const (
	initNotStarted initState = iota
	initInProgress
	initDone
)

// initCall is the shared in-flight initialization. done is closed once err
// is set, which wakes every waiter at once.
type initCall struct {
	done chan struct{}
	err  error
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

// WithOptions sets the options passed to the bridge on initialization.
func WithOptions(opts Options) RegistryOption {
	return func(r *Registry) {
		r.options = opts
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Registry coordinates every Handler rendered into the shared overlay
// container. One Registry is created by the application and passed to the
// producers that need it.
type Registry struct {
	bridge  Bridge
	options Options
	logger  *slog.Logger

	mu       sync.Mutex
	state    initState
	inflight *initCall
	handlers *list.List          // *Handler in registration order
	index    map[ID]*list.Element // Fast lookup by handler ID

	subMu       sync.Mutex
	subscribers []chan struct{}
}

// NewRegistry creates a Registry that drives the given bridge.
func NewRegistry(bridge Bridge, opts ...RegistryOption) (*Registry, error) {
	if bridge == nil {
		return nil, invalidArgument("bridge")
	}

	r := &Registry{
		bridge:   bridge,
		options:  DefaultOptions(),
		logger:   slog.Default(),
		handlers: list.New(),
		index:    make(map[ID]*list.Element),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Options returns the registry's options.
func (r *Registry) Options() Options {
	return r.options
}

// IsInitialized reports whether the bridge initialization has completed.
func (r *Registry) IsInitialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == initDone
}

// InitializeIfNeeded initializes the bridge at most once. Concurrent callers
// share the first caller's bridge call and observe its outcome. Cancellation
// and disconnection are treated as success; any other failure is returned to
// every waiting caller and a later call may try again.
//
// A waiter whose ctx ends before the shared call completes returns ctx.Err()
// without affecting the call.
func (r *Registry) InitializeIfNeeded(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case initDone:
		r.mu.Unlock()
		return nil
	case initInProgress:
		call := r.inflight
		r.mu.Unlock()
		return waitInit(ctx, call)
	}

	call := &initCall{done: make(chan struct{})}
	r.state = initInProgress
	r.inflight = call
	r.mu.Unlock()

	err := r.bridge.Initialize(ctx, r.options.ContainerSelector(), r.options.FlipMargin())
	if IsKind(err, KindCancelled, KindDisconnected) {
		r.logger.Debug("ignoring bridge initialize failure",
			"kind", Classify(err).String(),
			"error", err,
		)
		err = nil
	}
	if err != nil {
		err = &BridgeError{Op: "initialize", Err: err}
	}

	r.mu.Lock()
	if err == nil {
		r.state = initDone
	} else {
		r.state = initNotStarted
	}
	r.inflight = nil
	call.err = err
	close(call.done)
	r.mu.Unlock()

	if err == nil {
		r.logger.Debug("overlay bridge initialized",
			"container", r.options.ContainerSelector(),
			"flip_margin", r.options.FlipMargin(),
		)
	}
	return err
}

func waitInit(ctx context.Context, call *initCall) error {
	select {
	case <-call.done:
		return call.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register creates a Handler for content, adds it to the registry and
// notifies subscribers.
func (r *Registry) Register(content any) (*Handler, error) {
	h, err := NewHandler(content, r.bridge, r.notifyChanged)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.index[h.id] = r.handlers.PushBack(h)
	count := r.handlers.Len()
	r.mu.Unlock()

	r.notifyChanged()

	r.logger.Debug("registered overlay handler",
		"handler_id", h.id,
		"handlers", count,
	)
	return h, nil
}

// Unregister detaches a connected handler and removes it. It returns false
// without side effects when h is nil, not registered here, or not connected.
// If the detach fails with a reportable error the handler stays registered
// and the error is returned.
func (r *Registry) Unregister(ctx context.Context, h *Handler) (bool, error) {
	if h == nil {
		return false, nil
	}

	r.mu.Lock()
	elem, exists := r.index[h.id]
	r.mu.Unlock()
	if !exists || elem.Value.(*Handler) != h {
		return false, nil
	}
	if !h.Connected() {
		return false, nil
	}

	if err := h.Detach(ctx); err != nil {
		return false, err
	}

	r.mu.Lock()
	// A concurrent Unregister of the same handler may have won the race.
	elem, exists = r.index[h.id]
	if exists {
		r.handlers.Remove(elem)
		delete(r.index, h.id)
	}
	count := r.handlers.Len()
	r.mu.Unlock()

	if !exists {
		return false, nil
	}

	r.notifyChanged()

	r.logger.Debug("unregistered overlay handler",
		"handler_id", h.id,
		"handlers", count,
	)
	return true, nil
}

// Dispose releases the bridge. It does nothing if the bridge was never
// initialized.
func (r *Registry) Dispose(ctx context.Context) error {
	r.mu.Lock()
	done := r.state == initDone
	r.mu.Unlock()
	if !done {
		return nil
	}

	if err := r.bridge.Dispose(ctx); err != nil {
		if IsKind(err, KindCancelled) {
			r.logger.Debug("ignoring cancelled bridge dispose", "error", err)
			return nil
		}
		return &BridgeError{Op: "dispose", Err: err}
	}

	r.logger.Debug("overlay bridge disposed")
	return nil
}

// Handlers returns the registered handlers in registration order.
func (r *Registry) Handlers() []*Handler {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Handler, 0, r.handlers.Len())
	for e := r.handlers.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Handler))
	}
	return out
}

// Lookup returns the handler with the given ID.
func (r *Registry) Lookup(id ID) (*Handler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	elem, exists := r.index[id]
	if !exists {
		return nil, false
	}
	return elem.Value.(*Handler), true
}

// Count returns the number of registered handlers.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handlers.Len()
}

// Subscribe returns a channel that receives a signal whenever the set or
// content of handlers changes. Signals coalesce: a pending signal means
// "re-read the handler list", however many changes it stands for.
func (r *Registry) Subscribe() <-chan struct{} {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	ch := make(chan struct{}, 1)
	r.subscribers = append(r.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (r *Registry) Unsubscribe(ch <-chan struct{}) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	for i, sub := range r.subscribers {
		if sub == ch {
			r.subscribers = append(r.subscribers[:i], r.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// notifyChanged signals all subscribers (non-blocking).
func (r *Registry) notifyChanged() {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	for _, ch := range r.subscribers {
		select {
		case ch <- struct{}{}:
		default:
			// Signal already pending
		}
	}
}
