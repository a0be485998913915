package overlay

import (
	"context"
	"sync"
	"sync/atomic"
)

// fakeBridge records calls and returns configured errors.
type fakeBridge struct {
	initCalls       atomic.Int32
	connectCalls    atomic.Int32
	disconnectCalls atomic.Int32
	disposeCalls    atomic.Int32

	mu            sync.Mutex
	initErr       error
	connectErr    error
	disconnectErr error
	disposeErr    error
	selector      string
	flipMargin    int

	// initGate, when set, blocks Initialize until closed.
	initGate chan struct{}
	// initStarted is closed when the first Initialize call begins.
	initStarted chan struct{}
	startOnce   sync.Once
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{initStarted: make(chan struct{})}
}

func (b *fakeBridge) Initialize(ctx context.Context, containerSelector string, flipMargin int) error {
	b.initCalls.Add(1)
	b.startOnce.Do(func() { close(b.initStarted) })

	b.mu.Lock()
	b.selector = containerSelector
	b.flipMargin = flipMargin
	gate := b.initGate
	err := b.initErr
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return err
}

func (b *fakeBridge) Connect(ctx context.Context, id ID) error {
	b.connectCalls.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connectErr
}

func (b *fakeBridge) Disconnect(ctx context.Context, id ID) error {
	b.disconnectCalls.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disconnectErr
}

func (b *fakeBridge) Dispose(ctx context.Context) error {
	b.disposeCalls.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disposeErr
}

func (b *fakeBridge) setErrors(fn func(b *fakeBridge)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}
