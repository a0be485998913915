package overlay

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID identifies a Handler. It is the correlation key for all bridge calls.
type ID string

// Attribute is a single pass-through attribute.
type Attribute struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

// Attributes is an ordered list of pass-through attributes.
type Attributes []Attribute

// Clone returns a copy of the attribute list.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return Attributes{}
	}
	out := make(Attributes, len(a))
	copy(out, a)
	return out
}

// Get returns the value of the first attribute with the given name.
func (a Attributes) Get(name string) (any, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return nil, false
}

// Owner is the component a Handler renders content for.
type Owner struct {
	Attributes Attributes
	Tag        any
}

// Snapshot is a consistent copy of a Handler's state.
type Snapshot struct {
	ID          ID         `json:"id" yaml:"id"`
	Content     any        `json:"content" yaml:"content"`
	Attributes  Attributes `json:"attributes" yaml:"attributes"`
	Class       string     `json:"class,omitempty" yaml:"class,omitempty"`
	Style       string     `json:"style,omitempty" yaml:"style,omitempty"`
	Tag         any        `json:"-" yaml:"-"`
	Connected   bool       `json:"connected" yaml:"connected"`
	Locked      bool       `json:"locked" yaml:"locked"`
	ShowContent bool       `json:"show_content" yaml:"show_content"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"updated_at"`
}

// Handler holds the state of one piece of registered overlay content.
// A Handler is driven sequentially by its owner; the lock only makes its
// fields safe to read from renderers while the owner mutates them.
type Handler struct {
	id        ID
	bridge    Bridge
	onChanged func()

	mu          sync.RWMutex
	content     any
	attributes  Attributes
	class       string
	style       string
	tag         any
	connected   bool
	locked      bool
	showContent bool
	createdAt   time.Time
	updatedAt   time.Time
}

// NewHandler creates a Handler for content. onChanged is invoked after every
// accepted UpdateFragment.
func NewHandler(content any, bridge Bridge, onChanged func()) (*Handler, error) {
	if content == nil {
		return nil, invalidArgument("content")
	}
	if bridge == nil {
		return nil, invalidArgument("bridge")
	}
	if onChanged == nil {
		return nil, invalidArgument("onChanged")
	}

	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ULID: %w", err)
	}

	now := time.Now()
	return &Handler{
		id:         ID(id.String()),
		bridge:     bridge,
		onChanged:  onChanged,
		content:    content,
		attributes: Attributes{},
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ID returns the handler's identifier.
func (h *Handler) ID() ID {
	return h.id
}

// Content returns the current content descriptor.
func (h *Handler) Content() any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.content
}

// Connected reports whether the bridge is tracking this handler.
func (h *Handler) Connected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connected
}

// Locked reports whether updates are currently being dropped.
func (h *Handler) Locked() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.locked
}

// ShowContent reports whether the container should render the content.
func (h *Handler) ShowContent() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.showContent
}

// Snapshot returns a copy of the handler's state.
func (h *Handler) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Snapshot{
		ID:          h.id,
		Content:     h.content,
		Attributes:  h.attributes.Clone(),
		Class:       h.class,
		Style:       h.style,
		Tag:         h.tag,
		Connected:   h.connected,
		Locked:      h.locked,
		ShowContent: h.showContent,
		CreatedAt:   h.createdAt,
		UpdatedAt:   h.updatedAt,
	}
}

// Bind performs the first-time configuration from the owner. It ignores the
// lock and does not notify.
func (h *Handler) Bind(owner Owner, class, style string, show bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.attributes = owner.Attributes.Clone()
	h.tag = owner.Tag
	h.class = class
	h.style = style
	h.showContent = show
	h.updatedAt = time.Now()
}

// UpdateFragment applies new content unless an earlier update is still
// holding the lock, in which case the call is dropped. An accepted update
// locks the handler until Release and notifies once.
func (h *Handler) UpdateFragment(content any, owner Owner, class, style string, show bool) {
	h.mu.Lock()
	if h.locked {
		h.mu.Unlock()
		return
	}
	h.content = content
	h.class = class
	h.style = style
	h.tag = owner.Tag
	h.attributes = owner.Attributes.Clone()
	h.showContent = show
	h.locked = true
	h.updatedAt = time.Now()
	h.mu.Unlock()

	h.onChanged()
}

// Release re-arms the handler so the next UpdateFragment applies.
func (h *Handler) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.locked = false
}

// Initialize connects the handler to the bridge. Failures are always returned.
func (h *Handler) Initialize(ctx context.Context) error {
	if err := h.bridge.Connect(ctx, h.id); err != nil {
		return &BridgeError{Op: "connect", ID: h.id, Err: err}
	}

	h.mu.Lock()
	h.connected = true
	h.mu.Unlock()
	return nil
}

// Detach disconnects the handler from the bridge. The handler is marked
// disconnected whatever the outcome; cancellation is not reported.
func (h *Handler) Detach(ctx context.Context) error {
	err := h.bridge.Disconnect(ctx, h.id)

	h.mu.Lock()
	h.connected = false
	h.mu.Unlock()

	if err == nil || IsKind(err, KindCancelled) {
		return nil
	}
	return &BridgeError{Op: "disconnect", ID: h.id, Err: err}
}
