package bridge

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/jmylchreest/portal/internal/overlay"
)

// Op names a bridge operation.
type Op string

const (
	OpInitialize Op = "initialize"
	OpConnect    Op = "connect"
	OpDisconnect Op = "disconnect"
	OpDispose    Op = "dispose"
)

// Call records one bridge call.
type Call struct {
	Op         Op
	ID         overlay.ID
	Selector   string
	FlipMargin int
}

// Memory is an in-process overlay.Bridge. It records every call, tracks
// which ids are connected and can be told to fail.
type Memory struct {
	mu        sync.Mutex
	logger    *slog.Logger
	calls     []Call
	connected map[overlay.ID]bool
	failures  map[Op]error
	once      map[Op]error
	gate      chan struct{}
	disposed  bool
}

// NewMemory creates an empty in-memory bridge.
func NewMemory(logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		logger:    logger,
		connected: make(map[overlay.ID]bool),
		failures:  make(map[Op]error),
		once:      make(map[Op]error),
	}
}

// Fail makes every subsequent call of op return err. A nil err clears it.
func (m *Memory) Fail(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// FailNext makes only the next call of op return err.
func (m *Memory) FailNext(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.once[op] = err
}

// HoldInitialize blocks Initialize calls until the returned release func is
// called. Calling release more than once is safe.
func (m *Memory) HoldInitialize() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gate = gate
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gate == gate {
				m.gate = nil
			}
			m.mu.Unlock()
			close(gate)
		})
	}
}

// Initialize records the call.
func (m *Memory) Initialize(ctx context.Context, containerSelector string, flipMargin int) error {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return m.record(Call{Op: OpInitialize, Selector: containerSelector, FlipMargin: flipMargin}, func() {
		m.disposed = false
	})
}

// Connect records the call and marks id connected.
func (m *Memory) Connect(ctx context.Context, id overlay.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.record(Call{Op: OpConnect, ID: id}, func() {
		m.connected[id] = true
	})
}

// Disconnect records the call and marks id disconnected.
func (m *Memory) Disconnect(ctx context.Context, id overlay.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.record(Call{Op: OpDisconnect, ID: id}, func() {
		delete(m.connected, id)
	})
}

// Dispose records the call and forgets all connections.
func (m *Memory) Dispose(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.record(Call{Op: OpDispose}, func() {
		m.connected = make(map[overlay.ID]bool)
		m.disposed = true
	})
}

// record appends the call and applies it unless a failure is configured.
func (m *Memory) record(call Call, apply func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, call)

	if err, ok := m.once[call.Op]; ok {
		delete(m.once, call.Op)
		m.logger.Debug("memory bridge injected failure", "op", call.Op, "handler_id", call.ID, "error", err)
		return err
	}
	if err, ok := m.failures[call.Op]; ok {
		m.logger.Debug("memory bridge injected failure", "op", call.Op, "handler_id", call.ID, "error", err)
		return err
	}

	apply()
	m.logger.Debug("memory bridge call", "op", call.Op, "handler_id", call.ID)
	return nil
}

// Calls returns every recorded call in order.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// Count returns how many times op was called.
func (m *Memory) Count(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// IsConnected reports whether id is currently connected.
func (m *Memory) IsConnected(id overlay.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected[id]
}

// ConnectedCount returns the number of connected ids.
func (m *Memory) ConnectedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connected)
}

// Disposed reports whether Dispose succeeded since the last Initialize.
func (m *Memory) Disposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposed
}
