package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/sharescan/internal/cli/output"
	"github.com/marmos91/sharescan/pkg/export"
)

var reportRiskyOnly bool

var reportCmd = &cobra.Command{
	Use:   "report <file.csv>",
	Short: "Print an exported CSV report",
	Long: `Read a report written by "sharescan scan" or the API export and print it.

Reports written with legacy quoting are accepted too.

Examples:
  # Print a report as a table
  sharescan report shares.csv

  # Only the risky shares, as JSON
  sharescan report shares.csv --risky -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportRiskyOnly, "risky", false, "Print only shares open to all or writable")
}

func runReport(cmd *cobra.Command, args []string) error {
	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open report: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, err := export.Decode(f)
	if err != nil {
		return fmt.Errorf("failed to read report %s: %w", args[0], err)
	}

	return printer.Print(output.NewShareTable(records, reportRiskyOnly, printer.ColorEnabled()))
}
