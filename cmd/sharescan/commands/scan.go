package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/sharescan/internal/cli/output"
	"github.com/marmos91/sharescan/internal/cli/prompt"
	"github.com/marmos91/sharescan/internal/logger"
	"github.com/marmos91/sharescan/internal/telemetry"
	"github.com/marmos91/sharescan/pkg/config"
	"github.com/marmos91/sharescan/pkg/export"
	"github.com/marmos91/sharescan/pkg/runtime"
	"github.com/marmos91/sharescan/pkg/scan"
)

var (
	scanExportPath  string
	scanForce       bool
	scanNoExport    bool
	scanRiskyOnly   bool
	scanAskPassword bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <server>",
	Short: "Scan the shares of a server",
	Long: `Enumerate the shares of a server, classify the permissions of each one,
print the results and export them to CSV.

The server may be given as HOST, \\HOST or an IP address. The export
destination is a file path or s3://bucket/key.

Exit codes:
  0  scan and export succeeded
  1  usage or configuration error
  2  the server's shares could not be enumerated
  3  the export failed

Examples:
  # Scan a server and write shares.csv
  sharescan scan FILESRV

  # Authenticate as a domain user and export to S3
  sharescan scan '\\FILESRV' -u auditor --domain CORP --ask-password \
    --export s3://audit-reports/filesrv.csv

  # Show only risky shares, overwrite the report without asking
  sharescan scan 10.0.0.5 --risky --force`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanExportPath, "export", "e", "", "Export destination (default: export.path)")
	scanCmd.Flags().BoolVarP(&scanForce, "force", "f", false, "Overwrite an existing export file without asking")
	scanCmd.Flags().BoolVar(&scanNoExport, "no-export", false, "Print the results without exporting them")
	scanCmd.Flags().BoolVar(&scanRiskyOnly, "risky", false, "Print only shares open to all or writable")
	scanCmd.Flags().StringP("username", "u", "", "User name for the smb2 backend (default: scan.username)")
	scanCmd.Flags().String("domain", "", "Domain for the smb2 backend (default: scan.domain)")
	scanCmd.Flags().String("backend", "", "Directory backend: auto, netapi, smb2, fixture (default: scan.backend)")
	scanCmd.Flags().BoolVar(&scanAskPassword, "ask-password", false, "Prompt for the password of the smb2 backend")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(func(cfg *config.Config) { applyScanFlags(cmd, cfg) })
	if err != nil {
		return err
	}

	InitLogger(cmd, cfg)
	defer func() { _ = logger.Close() }()

	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}

	if scanAskPassword {
		password, err := prompt.Password("Password")
		if err != nil {
			return err
		}
		cfg.Scan.Password = password
	}

	destination := scanExportPath
	if destination == "" {
		destination = cfg.Export.Path
	}
	doExport := !scanNoExport
	if doExport {
		doExport, err = confirmExport(destination, scanForce || cfg.Export.Force)
		if err != nil {
			return err
		}
		if !doExport {
			printer.Warning("Export skipped: " + destination + " was kept")
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	shutdownTelemetry, err := telemetry.Init(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	rt, err := runtime.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Shutdown(context.Background()) }()

	var result scan.Event
	rt.Subscribe(func(ev scan.Event) { result = ev })

	logger.Info("Scan requested", logger.Server(args[0]), "config", getConfigSource(cfgFile))
	if _, err := rt.StartScan(ctx, args[0]); err != nil {
		return err
	}
	rt.Wait()

	if result.Kind == scan.EventScanFailed {
		printer.Error(fmt.Sprintf("Scan of %s failed after %s", result.Server, result.Duration.Round(time.Millisecond)))
		return result.Err
	}

	records := rt.Snapshot()
	if err := printer.Print(output.NewShareTable(records, scanRiskyOnly, printer.ColorEnabled())); err != nil {
		return err
	}

	if risky := countRisky(records); risky > 0 && printer.Format() == output.FormatTable {
		printer.Warning(fmt.Sprintf("%d of %d shares are open to all or writable", risky, len(records)))
	}

	if !doExport {
		return nil
	}

	dest, err := rt.ExportCSV(ctx, destination)
	if err != nil {
		printer.Error("Export failed")
		return err
	}
	if printer.Format() == output.FormatTable {
		printer.Success(fmt.Sprintf("Exported %d shares to %s", len(records), dest))
	}
	return nil
}

// applyScanFlags lets scan flags override the configuration.
func applyScanFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("username") {
		cfg.Scan.Username, _ = cmd.Flags().GetString("username")
	}
	if cmd.Flags().Changed("domain") {
		cfg.Scan.Domain, _ = cmd.Flags().GetString("domain")
	}
	if cmd.Flags().Changed("backend") {
		cfg.Scan.Backend, _ = cmd.Flags().GetString("backend")
	}
}

// confirmExport decides whether an existing file destination may be
// replaced. Non-interactive runs need force.
func confirmExport(destination string, force bool) (bool, error) {
	if export.IsS3URL(destination) || force {
		return true, nil
	}
	if _, err := os.Stat(destination); errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if !isInteractive() {
		return false, fmt.Errorf("%s already exists (use --force to overwrite)", destination)
	}
	ok, err := prompt.ConfirmOverwrite(destination, false)
	if errors.Is(err, prompt.ErrAborted) {
		return false, nil
	}
	return ok, err
}

func countRisky(records []scan.ShareRecord) int {
	n := 0
	for _, r := range records {
		if r.Risky() {
			n++
		}
	}
	return n
}

func telemetryConfig(cfg *config.Config) telemetry.Config {
	return telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "sharescan",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
}
