package main

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/portal/internal/bridge"
	"github.com/jmylchreest/portal/internal/overlay"
	"github.com/jmylchreest/portal/internal/tui"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Interactively drive the registry against an in-memory runtime",
	Long: `Launch an interactive inspector that plays the producer role against an
in-memory positioning runtime.

Key bindings:
  j/k, ↑/↓    Select fragment
  n           Register, bind and connect a new fragment
  u           Update the selected fragment (dropped while locked)
  h           Update the selected fragment with its content hidden
  r           Release the selected fragment's lock
  x, d        Unregister the selected fragment
  f           Cycle the disconnect fault (none, cancelled, failure)
  ?           Show help
  q           Quit (disposes the runtime)`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	mem := bridge.NewMemory(logger)
	registry, err := overlay.NewRegistry(mem,
		overlay.WithOptions(cfg.OverlayOptions()),
		overlay.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	return tui.Run(tui.RunOptions{
		Registry: registry,
		Bridge:   mem,
	})
}
