// Package commands implements the sharescan CLI.
package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/marmos91/sharescan/cmd/sharescan/commands/config"
	"github.com/marmos91/sharescan/pkg/directory"
	"github.com/marmos91/sharescan/pkg/export"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile      string
	outputFormat string
	noColor      bool
	verbose      bool
)

// Exit codes returned by main.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitScanFailed  = 2
	ExitExportError = 3
)

var rootCmd = &cobra.Command{
	Use:   "sharescan",
	Short: "Audit SMB share permissions",
	Long: `sharescan enumerates the shares exported by a Windows/SMB server,
reads the permission mask of each share, flags shares that are open to
everyone or writable, and exports the findings to CSV.

Use "sharescan [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	var enumErr *directory.EnumerationError
	var exportErr *export.ExportError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &enumErr):
		return ExitScanFailed
	case errors.As(err, &exportErr):
		return ExitExportError
	default:
		return ExitError
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/sharescan/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at DEBUG level")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(config.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
