package overlay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, b *fakeBridge, opts ...RegistryOption) *Registry {
	t.Helper()
	r, err := NewRegistry(b, opts...)
	require.NoError(t, err)
	return r
}

// drain reports whether a signal is pending on ch.
func drain(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestNewRegistry(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	r := newTestRegistry(t, newFakeBridge())
	assert.Equal(t, DefaultOptions(), r.Options())
	assert.False(t, r.IsInitialized())
	assert.Equal(t, 0, r.Count())

	opts := NewOptions(WithFlipMargin(4))
	r = newTestRegistry(t, newFakeBridge(), WithOptions(opts), WithLogger(nil))
	assert.Equal(t, 4, r.Options().FlipMargin())
}

func TestRegistry_InitializeIfNeeded(t *testing.T) {
	b := newFakeBridge()
	r := newTestRegistry(t, b, WithOptions(NewOptions(WithContainerSelector("#root"), WithFlipMargin(6))))
	ctx := context.Background()

	require.NoError(t, r.InitializeIfNeeded(ctx))
	require.NoError(t, r.InitializeIfNeeded(ctx))

	assert.True(t, r.IsInitialized())
	assert.Equal(t, int32(1), b.initCalls.Load())
	assert.Equal(t, "#root", b.selector)
	assert.Equal(t, 6, b.flipMargin)
}

func TestRegistry_InitializeIfNeededConcurrent(t *testing.T) {
	const callers = 32

	b := newFakeBridge()
	b.initGate = make(chan struct{})
	r := newTestRegistry(t, b)

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.InitializeIfNeeded(context.Background())
		}()
	}

	<-b.initStarted
	// Give the other callers time to find the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(b.initGate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), b.initCalls.Load())
	assert.True(t, r.IsInitialized())
}

func TestRegistry_InitializeIfNeededSharesFailure(t *testing.T) {
	const callers = 8

	boom := errors.New("boom")
	b := newFakeBridge()
	b.initGate = make(chan struct{})
	b.initErr = boom
	r := newTestRegistry(t, b)

	var wg sync.WaitGroup
	errs := make(chan error, callers)

	// Start the first caller and wait until it owns the bridge call so every
	// other caller joins it instead of starting a retry.
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- r.InitializeIfNeeded(context.Background())
	}()
	<-b.initStarted

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.InitializeIfNeeded(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(b.initGate)
	wg.Wait()
	close(errs)

	count := 0
	for err := range errs {
		count++
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, callers, count)
	// A caller scheduled after the shared call failed starts its own retry,
	// which fails the same way.
	assert.GreaterOrEqual(t, b.initCalls.Load(), int32(1))
	assert.LessOrEqual(t, b.initCalls.Load(), int32(callers))
	assert.False(t, r.IsInitialized())
}

func TestRegistry_InitializeIfNeededSwallowsBenignKinds(t *testing.T) {
	for _, cause := range []error{ErrCancelled, context.Canceled, ErrDisconnected} {
		b := newFakeBridge()
		b.initErr = cause
		r := newTestRegistry(t, b)

		require.NoError(t, r.InitializeIfNeeded(context.Background()))
		assert.True(t, r.IsInitialized())

		require.NoError(t, r.InitializeIfNeeded(context.Background()))
		assert.Equal(t, int32(1), b.initCalls.Load())
	}
}

func TestRegistry_InitializeIfNeededRetriesAfterFailure(t *testing.T) {
	b := newFakeBridge()
	b.initErr = errors.New("boom")
	r := newTestRegistry(t, b)

	require.Error(t, r.InitializeIfNeeded(context.Background()))

	b.setErrors(func(b *fakeBridge) { b.initErr = nil })
	require.NoError(t, r.InitializeIfNeeded(context.Background()))
	assert.Equal(t, int32(2), b.initCalls.Load())
	assert.True(t, r.IsInitialized())
}

func TestRegistry_InitializeIfNeededWaiterContext(t *testing.T) {
	b := newFakeBridge()
	b.initGate = make(chan struct{})
	r := newTestRegistry(t, b)

	done := make(chan error, 1)
	go func() { done <- r.InitializeIfNeeded(context.Background()) }()
	<-b.initStarted

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.InitializeIfNeeded(ctx), context.Canceled)

	close(b.initGate)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), b.initCalls.Load())
}

func TestRegistry_Register(t *testing.T) {
	r := newTestRegistry(t, newFakeBridge())
	ch := r.Subscribe()

	h, err := r.Register("menu")
	require.NoError(t, err)
	require.NotNil(t, h)

	assert.True(t, drain(ch), "register must notify")
	assert.Equal(t, 1, r.Count())

	found, ok := r.Lookup(h.ID())
	require.True(t, ok)
	assert.Same(t, h, found)

	_, err = r.Register(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_HandlersPreserveOrder(t *testing.T) {
	r := newTestRegistry(t, newFakeBridge())

	var ids []ID
	for _, c := range []string{"a", "b", "c", "d"} {
		h, err := r.Register(c)
		require.NoError(t, err)
		ids = append(ids, h.ID())
	}

	handlers := r.Handlers()
	require.Len(t, handlers, 4)
	for i, h := range handlers {
		assert.Equal(t, ids[i], h.ID())
	}
}

func TestRegistry_UpdateFragmentNotifies(t *testing.T) {
	r := newTestRegistry(t, newFakeBridge())
	h, err := r.Register("menu")
	require.NoError(t, err)

	ch := r.Subscribe()
	h.UpdateFragment("menu-2", Owner{}, "", "", true)
	assert.True(t, drain(ch))

	h.UpdateFragment("menu-3", Owner{}, "", "", true)
	assert.False(t, drain(ch), "locked update must not notify")
}

func TestRegistry_Unregister(t *testing.T) {
	ctx := context.Background()
	b := newFakeBridge()
	r := newTestRegistry(t, b)
	other := newTestRegistry(t, newFakeBridge())

	t.Run("nil handler", func(t *testing.T) {
		ok, err := r.Unregister(ctx, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("foreign handler", func(t *testing.T) {
		h, err := other.Register("foreign")
		require.NoError(t, err)
		require.NoError(t, h.Initialize(ctx))

		ok, err := r.Unregister(ctx, h)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 1, other.Count())
	})

	t.Run("never connected", func(t *testing.T) {
		h, err := r.Register("idle")
		require.NoError(t, err)

		ok, err := r.Unregister(ctx, h)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, int32(0), b.disconnectCalls.Load())

		_, stillThere := r.Lookup(h.ID())
		assert.True(t, stillThere)
	})

	t.Run("connected exactly once", func(t *testing.T) {
		h, err := r.Register("live")
		require.NoError(t, err)
		require.NoError(t, h.Initialize(ctx))

		ch := r.Subscribe()
		defer r.Unsubscribe(ch)

		ok, err := r.Unregister(ctx, h)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, drain(ch))
		assert.False(t, h.Connected())

		_, stillThere := r.Lookup(h.ID())
		assert.False(t, stillThere)

		ok, err = r.Unregister(ctx, h)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRegistry_UnregisterDetachFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("cancelled is swallowed", func(t *testing.T) {
		b := newFakeBridge()
		r := newTestRegistry(t, b)
		h, err := r.Register("x")
		require.NoError(t, err)
		require.NoError(t, h.Initialize(ctx))

		b.setErrors(func(b *fakeBridge) { b.disconnectErr = ErrCancelled })
		ok, err := r.Unregister(ctx, h)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 0, r.Count())
	})

	t.Run("other failure propagates", func(t *testing.T) {
		boom := errors.New("boom")
		b := newFakeBridge()
		r := newTestRegistry(t, b)
		h, err := r.Register("x")
		require.NoError(t, err)
		require.NoError(t, h.Initialize(ctx))

		b.setErrors(func(b *fakeBridge) { b.disconnectErr = boom })
		ok, err := r.Unregister(ctx, h)
		assert.ErrorIs(t, err, boom)
		assert.False(t, ok)
		assert.False(t, h.Connected())
		assert.Equal(t, 1, r.Count(), "handler stays registered when detach fails")
	})
}

func TestRegistry_FailedInitializeLeavesHandlerRegistered(t *testing.T) {
	b := newFakeBridge()
	b.connectErr = errors.New("boom")
	r := newTestRegistry(t, b)

	h, err := r.Register("x")
	require.NoError(t, err)
	require.Error(t, h.Initialize(context.Background()))

	_, ok := r.Lookup(h.ID())
	assert.True(t, ok)
	assert.False(t, h.Connected())
}

func TestRegistry_Dispose(t *testing.T) {
	ctx := context.Background()

	t.Run("never initialized", func(t *testing.T) {
		b := newFakeBridge()
		r := newTestRegistry(t, b)
		require.NoError(t, r.Dispose(ctx))
		assert.Equal(t, int32(0), b.disposeCalls.Load())
	})

	t.Run("initialization failed", func(t *testing.T) {
		b := newFakeBridge()
		b.initErr = errors.New("boom")
		r := newTestRegistry(t, b)
		require.Error(t, r.InitializeIfNeeded(ctx))

		require.NoError(t, r.Dispose(ctx))
		assert.Equal(t, int32(0), b.disposeCalls.Load())
	})

	t.Run("initialized", func(t *testing.T) {
		b := newFakeBridge()
		r := newTestRegistry(t, b)
		require.NoError(t, r.InitializeIfNeeded(ctx))
		require.NoError(t, r.Dispose(ctx))
		assert.Equal(t, int32(1), b.disposeCalls.Load())
	})

	t.Run("cancelled is swallowed", func(t *testing.T) {
		b := newFakeBridge()
		b.disposeErr = ErrCancelled
		r := newTestRegistry(t, b)
		require.NoError(t, r.InitializeIfNeeded(ctx))
		assert.NoError(t, r.Dispose(ctx))
	})

	t.Run("other failure propagates", func(t *testing.T) {
		b := newFakeBridge()
		b.disposeErr = ErrDisconnected
		r := newTestRegistry(t, b)
		require.NoError(t, r.InitializeIfNeeded(ctx))

		err := r.Dispose(ctx)
		assert.ErrorIs(t, err, ErrDisconnected)
	})
}

func TestRegistry_SubscribeCoalesces(t *testing.T) {
	r := newTestRegistry(t, newFakeBridge())
	ch := r.Subscribe()

	for i := 0; i < 5; i++ {
		_, err := r.Register(i)
		require.NoError(t, err)
	}

	assert.True(t, drain(ch))
	assert.False(t, drain(ch), "signals coalesce into one pending notification")

	r.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
}

func TestRegistry_ConcurrentRegisterUnregister(t *testing.T) {
	const workers = 16
	ctx := context.Background()
	r := newTestRegistry(t, newFakeBridge())

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := r.Register(i)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, h.Initialize(ctx))
			h.UpdateFragment(i*10, Owner{}, "", "", true)
			ok, err := r.Unregister(ctx, h)
			assert.NoError(t, err)
			assert.True(t, ok)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Count())
}

// TestRegistry_Session walks a producer through a full open/update/close cycle.
func TestRegistry_Session(t *testing.T) {
	ctx := context.Background()
	b := newFakeBridge()
	r := newTestRegistry(t, b)
	require.NoError(t, r.InitializeIfNeeded(ctx))

	h, err := r.Register("init")
	require.NoError(t, err)

	owner := Owner{Tag: "picker"}
	h.Bind(owner, "", "", true)
	require.NoError(t, h.Initialize(ctx))

	h.UpdateFragment("A", owner, "", "", true)
	assert.True(t, h.Locked())

	h.UpdateFragment("B", owner, "", "", false)
	assert.Equal(t, "A", h.Content())
	assert.True(t, h.ShowContent())

	h.Release()
	h.UpdateFragment("C", owner, "", "", true)

	snap := h.Snapshot()
	assert.Equal(t, "C", snap.Content)
	assert.True(t, snap.ShowContent)

	ok, err := r.Unregister(ctx, h)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, r.Dispose(ctx))
	assert.Equal(t, int32(1), b.disposeCalls.Load())
}
