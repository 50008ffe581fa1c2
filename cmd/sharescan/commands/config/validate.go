package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/sharescan/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the sharescan configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  sharescan config validate

  # Validate specific config file
  sharescan config validate --config /etc/sharescan/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	displayPath := path
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
		if !config.DefaultConfigExists() {
			displayPath += " (not found, using defaults)"
		}
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if warnings := configWarnings(cfg); len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Scan backend:    %s\n", cfg.Scan.Backend)
	_, _ = fmt.Fprintf(out, "  Export path:     %s\n", cfg.Export.Path)
	_, _ = fmt.Fprintf(out, "  API port:        %d\n", cfg.API.Port)
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)

	return nil
}

func configWarnings(cfg *config.Config) []string {
	var warnings []string
	if cfg.API.JWT.Secret == "" {
		warnings = append(warnings, "JWT secret not set - the API accepts unauthenticated requests")
	}
	if cfg.Scan.Password != "" {
		warnings = append(warnings, "scan password stored in plain text - prefer SHARESCAN_SCAN_PASSWORD")
	}
	if cfg.Scan.Backend == "smb2" && cfg.Scan.Username == "" {
		warnings = append(warnings, "no scan username - the smb2 backend opens an anonymous session")
	}
	return warnings
}
