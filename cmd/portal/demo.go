package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/portal/internal/adapter/output"
	"github.com/jmylchreest/portal/internal/bridge"
	"github.com/jmylchreest/portal/internal/container"
	"github.com/jmylchreest/portal/internal/overlay"
)

var demoOpts struct {
	format      string
	visibleOnly bool
	maxLen      int
	calls       bool
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a producer session against an in-memory runtime",
	Long: `Run a complete producer session against an in-memory positioning runtime
and print the resulting container.

The session registers a fragment, binds it to an owner, initializes the
runtime, connects the fragment and then sends three updates. The second
update arrives while the renderer still holds the lock and is dropped; the
third follows a release and is applied. A second fragment is registered but
never connected, so unregistering it is a no-op.

Output formats:
  plain  Human-readable list (default)
  json   JSON array of fragments
  yaml   YAML list of fragments
  ids    One fragment id per line`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().StringVarP(&demoOpts.format, "format", "f", "plain",
		"Output format (plain, json, yaml, ids)")
	demoCmd.Flags().BoolVar(&demoOpts.visibleOnly, "visible", false,
		"Only print fragments whose content is shown")
	demoCmd.Flags().IntVar(&demoOpts.maxLen, "max-len", 80,
		"Maximum content length in plain output (0 = unlimited)")
	demoCmd.Flags().BoolVar(&demoOpts.calls, "calls", false,
		"Print the runtime calls made during the session")
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	mem := bridge.NewMemory(logger)
	registry, err := overlay.NewRegistry(mem,
		overlay.WithOptions(cfg.OverlayOptions()),
		overlay.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	renderer := container.NewRenderer(registry, logger)

	if err := runDemoSession(ctx, registry); err != nil {
		return err
	}

	opts := output.DefaultFormatterOptions()
	opts.VisibleOnly = demoOpts.visibleOnly
	opts.ContentMaxLen = demoOpts.maxLen

	formatter := output.NewFormatter(output.FormatType(demoOpts.format), opts)
	if err := formatter.Format(os.Stdout, renderer.Refresh()); err != nil {
		return err
	}

	if demoOpts.calls {
		fmt.Fprintln(os.Stderr)
		for _, c := range mem.Calls() {
			switch c.Op {
			case bridge.OpInitialize:
				fmt.Fprintf(os.Stderr, "%s %s flip_margin=%d\n", c.Op, c.Selector, c.FlipMargin)
			case bridge.OpDispose:
				fmt.Fprintln(os.Stderr, c.Op)
			default:
				fmt.Fprintf(os.Stderr, "%s %s\n", c.Op, c.ID)
			}
		}
	}

	return registry.Dispose(ctx)
}

// runDemoSession drives the producer contract end to end.
func runDemoSession(ctx context.Context, registry *overlay.Registry) error {
	menu, err := registry.Register("menu: File")
	if err != nil {
		return err
	}
	menu.Bind(overlay.Owner{
		Attributes: overlay.Attributes{{Name: "aria-haspopup", Value: "menu"}},
		Tag:        "toolbar",
	}, "menu", "", true)

	if err := registry.InitializeIfNeeded(ctx); err != nil {
		return err
	}
	if err := menu.Initialize(ctx); err != nil {
		return err
	}

	owner := overlay.Owner{Tag: "toolbar"}
	menu.UpdateFragment("menu: File (New, Open)", owner, "menu", "", true)
	// Dropped: the renderer has not released the first update yet.
	menu.UpdateFragment("menu: File (stale)", owner, "menu", "", true)
	menu.Release()
	menu.UpdateFragment("menu: File (New, Open, Save)", owner, "menu", "", true)

	tooltip, err := registry.Register("tooltip: Save")
	if err != nil {
		return err
	}
	tooltip.Bind(overlay.Owner{Tag: "save-button"}, "tooltip", "", false)

	removed, err := registry.Unregister(ctx, tooltip)
	if err != nil {
		return err
	}
	logger.Debug("unregister of unconnected handler", "removed", removed)
	return nil
}
