package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/searchemu/searchemu/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect searchemu configuration",
		Long: `Inspect searchemu's configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. YAML file passed via --config
  3. SEARCHEMU_* environment variables`,
		Example: `  # Show hardcoded defaults
  searchemu config show --source defaults

  # Show the effective configuration for a given file
  searchemu config show --config ./searchemu.yaml`,
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool
	var configPath string
	var source string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show configuration",
		Long: `Show the effective configuration after merging all sources, or a
single source in isolation via --source.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, configPath, source, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, defaults")

	return cmd
}

func runConfigShow(cmd *cobra.Command, configPath, source string, jsonOutput bool) error {
	var cfg *config.Config
	var err error

	switch source {
	case "merged":
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	case "defaults":
		cfg = config.NewConfig()
	default:
		return fmt.Errorf("invalid source: %s (use: merged, defaults)", source)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
	return err
}
