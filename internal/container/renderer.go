// Package container renders the shared overlay container: it follows a
// registry's change notifications and keeps an ordered snapshot of every
// registered fragment.
package container

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jmylchreest/portal/internal/overlay"
)

// Source is the part of overlay.Registry the renderer needs.
type Source interface {
	Subscribe() <-chan struct{}
	Unsubscribe(ch <-chan struct{})
	Handlers() []*overlay.Handler
}

// RenderCallback is called with the fragment list after every re-render.
type RenderCallback func(fragments []overlay.Snapshot)

// Renderer keeps the container's view of the registry up to date.
type Renderer struct {
	source Source
	logger *slog.Logger

	mu        sync.RWMutex
	fragments []overlay.Snapshot
	renders   uint64
	onRender  RenderCallback
}

// NewRenderer creates a renderer for source.
func NewRenderer(source Source, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		source: source,
		logger: logger,
	}
}

// SetRenderCallback sets the callback invoked after every re-render.
func (r *Renderer) SetRenderCallback(cb RenderCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRender = cb
}

// Run re-renders on every change notification until ctx ends or the
// subscription is closed.
func (r *Renderer) Run(ctx context.Context) error {
	ch := r.source.Subscribe()
	defer r.source.Unsubscribe(ch)

	// Catch up on anything registered before the subscription existed.
	r.Refresh()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			r.Refresh()
		}
	}
}

// Refresh re-reads the handler list and returns the new fragments.
func (r *Renderer) Refresh() []overlay.Snapshot {
	handlers := r.source.Handlers()
	fragments := make([]overlay.Snapshot, 0, len(handlers))
	for _, h := range handlers {
		fragments = append(fragments, h.Snapshot())
	}

	r.mu.Lock()
	r.fragments = fragments
	r.renders++
	renders := r.renders
	cb := r.onRender
	r.mu.Unlock()

	r.logger.Debug("overlay container rendered",
		"fragments", len(fragments),
		"visible", countVisible(fragments),
		"render", renders,
	)

	if cb != nil {
		cb(cloneFragments(fragments))
	}
	return cloneFragments(fragments)
}

// Fragments returns every fragment from the last render, in registration order.
func (r *Renderer) Fragments() []overlay.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneFragments(r.fragments)
}

// Visible returns the fragments whose content should currently be shown.
func (r *Renderer) Visible() []overlay.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]overlay.Snapshot, 0, len(r.fragments))
	for _, f := range r.fragments {
		if f.ShowContent {
			out = append(out, f)
		}
	}
	return out
}

// Renders returns how many times the container has been rendered.
func (r *Renderer) Renders() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.renders
}

func countVisible(fragments []overlay.Snapshot) int {
	n := 0
	for _, f := range fragments {
		if f.ShowContent {
			n++
		}
	}
	return n
}

func cloneFragments(fragments []overlay.Snapshot) []overlay.Snapshot {
	out := make([]overlay.Snapshot, len(fragments))
	copy(out, fragments)
	return out
}
