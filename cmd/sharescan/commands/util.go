package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marmos91/sharescan/internal/cli/output"
	"github.com/marmos91/sharescan/internal/logger"
	"github.com/marmos91/sharescan/pkg/config"
)

// loadConfig loads the configuration named by --config, applies the
// overrides and validates the result.
func loadConfig(overrides ...func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "DEBUG"
	}
	for _, override := range overrides {
		override(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// InitLogger points the logger at the configured sink. A sink that cannot
// be opened is reported and logging falls back to stderr.
func InitLogger(cmd *cobra.Command, cfg *config.Config) {
	err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		cmd.PrintErrf("Warning: %v; logging to stderr\n", err)
		_ = logger.Init(logger.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: "stderr",
		})
	}
}

// newPrinter builds the printer for --output and --no-color.
func newPrinter(cmd *cobra.Command) (*output.Printer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(cmd.OutOrStdout(), format, colorEnabled(cmd)), nil
}

func colorEnabled(cmd *cobra.Command) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// isInteractive reports whether stdin is a terminal.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
