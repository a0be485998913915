package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/portal/internal/bridge"
	"github.com/jmylchreest/portal/internal/config"
	"github.com/jmylchreest/portal/internal/container"
	"github.com/jmylchreest/portal/internal/overlay"
)

// disposeTimeout bounds the final Dispose call on shutdown.
const disposeTimeout = 5 * time.Second

var serveOpts struct {
	bridgeKind string
	noWatch    bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to the positioning runtime and host the overlay registry",
	Long: `Connect to the positioning runtime, initialize the overlay registry and
keep the container renderer running until interrupted.

The runtime is reached over D-Bus by default (see the [bridge] section of the
config file). With --bridge memory an in-process recorder stands in for it.

Changes to the config file are picked up while running. The log level is
applied immediately; overlay options are fixed for the registry's lifetime
and need a restart.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveOpts.bridgeKind, "bridge", "",
		"Bridge kind (dbus, memory; default from config)")
	serveCmd.Flags().BoolVar(&serveOpts.noWatch, "no-watch", false,
		"Do not reload the config file on change")
}

// newBridge builds the bridge selected by kind.
func newBridge(kind string) (overlay.Bridge, error) {
	switch kind {
	case config.BridgeDBus:
		return bridge.DialDBus(cfg.DBusConfig(), logger)
	case config.BridgeMemory:
		return bridge.NewMemory(logger), nil
	default:
		return nil, fmt.Errorf("unknown bridge kind %q", kind)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	kind := serveOpts.bridgeKind
	if kind == "" {
		kind = cfg.Bridge.Kind
	}

	b, err := newBridge(kind)
	if err != nil {
		return err
	}

	registry, err := overlay.NewRegistry(b,
		overlay.WithOptions(cfg.OverlayOptions()),
		overlay.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := registry.InitializeIfNeeded(ctx); err != nil {
		return fmt.Errorf("failed to initialize overlay registry: %w", err)
	}

	logger.Info("overlay registry ready",
		"bridge", kind,
		"container", registry.Options().ContainerSelector(),
		"flip_margin", registry.Options().FlipMargin(),
	)

	if !serveOpts.noWatch {
		watcher, err := config.NewWatcher(configPath(), onConfigReload(registry.Options()), logger)
		if err != nil {
			logger.Warn("failed to create config watcher", "error", err)
		} else if err := watcher.Start(); err != nil {
			logger.Warn("failed to start config watcher", "error", err)
		} else {
			defer func() { _ = watcher.Stop() }()
		}
	}

	renderer := container.NewRenderer(registry, logger)
	renderer.SetRenderCallback(func(fragments []overlay.Snapshot) {
		logger.Info("container rendered",
			"fragments", len(fragments),
			"visible", len(renderer.Visible()),
		)
	})

	runErr := renderer.Run(ctx)

	// Shutdown uses a fresh context: ctx is already cancelled here.
	disposeCtx, cancel := context.WithTimeout(context.Background(), disposeTimeout)
	defer cancel()
	if err := registry.Dispose(disposeCtx); err != nil {
		logger.Warn("failed to dispose overlay bridge", "error", err)
	}

	logger.Info("overlay registry stopped", "handlers", registry.Count())
	return runErr
}

// onConfigReload applies what can change at runtime and reports the rest.
func onConfigReload(current overlay.Options) config.ReloadCallback {
	return func(next *config.Config) {
		if !globalOpts.verbose {
			logLevel.Set(next.LogLevel())
		}

		opts := next.OverlayOptions()
		if opts.ContainerSelector() != current.ContainerSelector() ||
			opts.FlipMargin() != current.FlipMargin() {
			logger.Warn("overlay options changed, restart to apply",
				"container", opts.ContainerSelector(),
				"flip_margin", opts.FlipMargin(),
			)
		}
	}
}
