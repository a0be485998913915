package overlay

// DefaultContainerSelector identifies the single global overlay mount point.
const DefaultContainerSelector = "portal-overlay-root"

// Options configures how the positioning runtime is initialized.
// An Options value is immutable once constructed.
type Options struct {
	containerSelector string
	flipMargin        int
}

// Option customises Options during construction.
type Option func(*Options)

// WithContainerSelector sets the selector of the overlay mount point.
// An empty selector keeps the default.
func WithContainerSelector(selector string) Option {
	return func(o *Options) {
		if selector != "" {
			o.containerSelector = selector
		}
	}
}

// WithFlipMargin sets the margin the runtime uses before flipping placement.
func WithFlipMargin(margin int) Option {
	return func(o *Options) {
		o.flipMargin = margin
	}
}

// DefaultOptions returns Options with default values.
func DefaultOptions() Options {
	return Options{
		containerSelector: DefaultContainerSelector,
		flipMargin:        0,
	}
}

// NewOptions builds Options from the defaults plus the given overrides.
func NewOptions(opts ...Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ContainerSelector returns the overlay mount point selector.
func (o Options) ContainerSelector() string {
	return o.containerSelector
}

// FlipMargin returns the flip margin.
func (o Options) FlipMargin() int {
	return o.flipMargin
}
