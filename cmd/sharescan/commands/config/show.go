package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/sharescan/internal/cli/output"
	"github.com/marmos91/sharescan/pkg/config"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective sharescan configuration with secrets masked.

Outputs YAML unless --output json is given.

Examples:
  sharescan config show
  sharescan config show -o json --config /etc/sharescan/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return err
	}

	formatFlag, _ := cmd.Flags().GetString("output")
	format, err := output.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	data, err := config.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}

	if format != output.FormatJSON {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	// Round-trip through YAML so JSON keys match the file.
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	return output.PrintJSON(cmd.OutOrStdout(), tree)
}
