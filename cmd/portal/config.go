package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/portal/internal/config"
)

var configOpts struct {
	format string
	force  bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configShowCmd.Flags().StringVarP(&configOpts.format, "format", "f", "toml",
		"Output format (toml, yaml)")
	configInitCmd.Flags().BoolVar(&configOpts.force, "force", false,
		"Overwrite an existing config file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	switch configOpts.format {
	case "toml":
		enc := toml.NewEncoder(os.Stdout)
		return enc.Encode(cfg)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	default:
		return fmt.Errorf("unknown format %q (expected toml or yaml)", configOpts.format)
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath()
	if !configOpts.force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Println(path)
	return nil
}
