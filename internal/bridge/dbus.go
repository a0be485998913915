package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/portal/internal/overlay"
)

const (
	// DBusInterface is the positioning runtime interface name.
	DBusInterface = "io.github.jmylchreest.Portal"
	// DBusPath is the positioning runtime object path.
	DBusPath = "/io/github/jmylchreest/Portal"
	// DBusDestination is the bus name the runtime owns.
	DBusDestination = "io.github.jmylchreest.Portal"

	// DefaultCallTimeout bounds a single bridge call.
	DefaultCallTimeout = 5 * time.Second
)

// D-Bus error names that mean the runtime is briefly unreachable.
var disconnectedErrorNames = map[string]bool{
	"org.freedesktop.DBus.Error.ServiceUnknown": true,
	"org.freedesktop.DBus.Error.NameHasNoOwner": true,
	"org.freedesktop.DBus.Error.NoReply":        true,
	"org.freedesktop.DBus.Error.Disconnected":   true,
	"org.freedesktop.DBus.Error.NoServer":       true,
}

// DBusConfig describes where the positioning runtime lives.
type DBusConfig struct {
	Bus         string // "session" (default) or "system"
	Destination string
	Path        string
	Interface   string
	CallTimeout time.Duration
}

// DefaultDBusConfig returns the default runtime location on the session bus.
func DefaultDBusConfig() DBusConfig {
	return DBusConfig{
		Bus:         "session",
		Destination: DBusDestination,
		Path:        DBusPath,
		Interface:   DBusInterface,
		CallTimeout: DefaultCallTimeout,
	}
}

// DBus is an overlay.Bridge that forwards calls to a D-Bus object.
type DBus struct {
	obj     dbus.BusObject
	iface   string
	timeout time.Duration
	logger  *slog.Logger
}

// DialDBus connects to the configured bus and returns a bridge for the
// runtime object. The bus connection is shared and is not closed by the bridge.
func DialDBus(cfg DBusConfig, logger *slog.Logger) (*DBus, error) {
	var (
		conn *dbus.Conn
		err  error
	)
	switch cfg.Bus {
	case "", "session":
		conn, err = dbus.SessionBus()
	case "system":
		conn, err = dbus.SystemBus()
	default:
		return nil, fmt.Errorf("unknown bus %q", cfg.Bus)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s bus: %w", cfg.Bus, err)
	}

	if cfg.Destination == "" {
		cfg.Destination = DBusDestination
	}
	if cfg.Path == "" {
		cfg.Path = DBusPath
	}

	obj := conn.Object(cfg.Destination, dbus.ObjectPath(cfg.Path))
	return NewDBus(obj, cfg.Interface, cfg.CallTimeout, logger), nil
}

// NewDBus creates a bridge that calls methods of iface on obj. A zero
// timeout disables the per-call deadline.
func NewDBus(obj dbus.BusObject, iface string, timeout time.Duration, logger *slog.Logger) *DBus {
	if logger == nil {
		logger = slog.Default()
	}
	if iface == "" {
		iface = DBusInterface
	}
	return &DBus{
		obj:     obj,
		iface:   iface,
		timeout: timeout,
		logger:  logger,
	}
}

// Initialize calls Initialize(si) on the runtime.
func (b *DBus) Initialize(ctx context.Context, containerSelector string, flipMargin int) error {
	return b.call(ctx, "Initialize", containerSelector, int32(flipMargin))
}

// Connect calls Connect(s) on the runtime.
func (b *DBus) Connect(ctx context.Context, id overlay.ID) error {
	return b.call(ctx, "Connect", string(id))
}

// Disconnect calls Disconnect(s) on the runtime.
func (b *DBus) Disconnect(ctx context.Context, id overlay.ID) error {
	return b.call(ctx, "Disconnect", string(id))
}

// Dispose calls Dispose() on the runtime.
func (b *DBus) Dispose(ctx context.Context) error {
	return b.call(ctx, "Dispose")
}

func (b *DBus) call(ctx context.Context, method string, args ...any) error {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	member := b.iface + "." + method
	err := b.obj.CallWithContext(ctx, member, 0, args...).Err
	if err != nil {
		b.logger.Debug("D-Bus bridge call failed", "method", member, "error", err)
		return classifyDBusError(err)
	}
	return nil
}

// classifyDBusError wraps err with the overlay sentinel matching its cause.
func classifyDBusError(err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", overlay.ErrCancelled, err)
	}
	if errors.Is(err, dbus.ErrClosed) {
		return fmt.Errorf("%w: %w", overlay.ErrDisconnected, err)
	}

	var name string
	var dbusErr dbus.Error
	var dbusErrPtr *dbus.Error
	switch {
	case errors.As(err, &dbusErr):
		name = dbusErr.Name
	case errors.As(err, &dbusErrPtr):
		name = dbusErrPtr.Name
	}
	if disconnectedErrorNames[name] {
		return fmt.Errorf("%w: %w", overlay.ErrDisconnected, err)
	}
	return err
}
