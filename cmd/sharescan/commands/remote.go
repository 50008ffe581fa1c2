package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/sharescan/internal/cli/output"
	"github.com/marmos91/sharescan/internal/cli/timeutil"
	"github.com/marmos91/sharescan/pkg/apiclient"
)

var (
	remoteURL   string
	remoteToken string
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Drive a running sharescan server",
	Long: `Control a "sharescan serve" instance through its HTTP API.

The token defaults to $SHARESCAN_TOKEN. Issue one with "sharescan token".

Examples:
  sharescan remote health --url http://scanner:8080
  sharescan remote scan FILESRV01 --wait
  sharescan remote shares --risky -o json
  sharescan remote export s3://audits/shares.csv`,
}

var remoteHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server is up",
	Args:  cobra.NoArgs,
	RunE:  runRemoteHealth,
}

var remoteStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the scan engine state",
	Args:  cobra.NoArgs,
	RunE:  runRemoteStatus,
}

var remoteScanWait bool

var remoteScanCmd = &cobra.Command{
	Use:   "scan <server>",
	Short: "Start a scan on the server",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemoteScan,
}

var remoteSharesRisky bool

var remoteSharesCmd = &cobra.Command{
	Use:   "shares",
	Short: "List the results of the last scan",
	Args:  cobra.NoArgs,
	RunE:  runRemoteShares,
}

var remoteClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard the results held by the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printer, client, err := remoteSetup(cmd)
		if err != nil {
			return err
		}
		if err := client.ClearShares(cmd.Context()); err != nil {
			return err
		}
		printer.Success("Results cleared")
		return nil
	},
}

var remoteExportCmd = &cobra.Command{
	Use:   "export [destination]",
	Short: "Export the results on the server side",
	Long: `Ask the server to write its CSV report. Without a destination the
server uses its export.path. Use "-" to download the report to stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRemoteExport,
}

func init() {
	remoteCmd.PersistentFlags().StringVar(&remoteURL, "url", "http://localhost:8080", "Base URL of the sharescan API")
	remoteCmd.PersistentFlags().StringVar(&remoteToken, "token", "", "Bearer token (default: $SHARESCAN_TOKEN)")

	remoteScanCmd.Flags().BoolVar(&remoteScanWait, "wait", false, "Wait for the scan to finish")
	remoteSharesCmd.Flags().BoolVar(&remoteSharesRisky, "risky", false, "List only shares open to all or writable")

	remoteCmd.AddCommand(remoteHealthCmd)
	remoteCmd.AddCommand(remoteStatusCmd)
	remoteCmd.AddCommand(remoteScanCmd)
	remoteCmd.AddCommand(remoteSharesCmd)
	remoteCmd.AddCommand(remoteClearCmd)
	remoteCmd.AddCommand(remoteExportCmd)
}

func remoteSetup(cmd *cobra.Command) (*output.Printer, *apiclient.Client, error) {
	printer, err := newPrinter(cmd)
	if err != nil {
		return nil, nil, err
	}

	token := remoteToken
	if token == "" {
		token = os.Getenv("SHARESCAN_TOKEN")
	}
	return printer, apiclient.New(remoteURL).WithToken(token), nil
}

func runRemoteHealth(cmd *cobra.Command, args []string) error {
	printer, client, err := remoteSetup(cmd)
	if err != nil {
		return err
	}

	h, err := client.Health(cmd.Context())
	if err != nil {
		return err
	}
	if printer.Format() != output.FormatTable {
		return printer.Print(h)
	}
	return output.KeyValueTable(printer.Writer(), [][2]string{
		{"Status", h.Status},
		{"Version", h.Data.Version},
		{"Started", timeutil.FormatTime(h.Data.StartedAt)},
		{"Uptime", timeutil.FormatUptime(h.Data.Uptime)},
	})
}

func runRemoteStatus(cmd *cobra.Command, args []string) error {
	printer, client, err := remoteSetup(cmd)
	if err != nil {
		return err
	}

	st, err := client.ScanStatus(cmd.Context())
	if err != nil {
		return err
	}
	return printStatus(printer, st)
}

func printStatus(printer *output.Printer, st *apiclient.ScanStatus) error {
	if printer.Format() != output.FormatTable {
		return printer.Print(st)
	}

	pairs := [][2]string{{"State", st.State}}
	if st.Running() {
		pairs = append(pairs, [2]string{"Scan", st.ScanID}, [2]string{"Server", st.Server})
	}
	if ev := st.LastEvent; ev != nil {
		pairs = append(pairs,
			[2]string{"Last scan", fmt.Sprintf("%s of %s", ev.Kind, ev.Server)},
			[2]string{"Started", timeutil.FormatTime(ev.StartedAt)},
			[2]string{"Duration", timeutil.FormatDuration(time.Duration(ev.DurationMs) * time.Millisecond)},
			[2]string{"Shares", fmt.Sprint(ev.Count)},
		)
		if ev.Error != "" {
			pairs = append(pairs, [2]string{"Error", ev.Error})
		}
	}
	return output.KeyValueTable(printer.Writer(), pairs)
}

func runRemoteScan(cmd *cobra.Command, args []string) error {
	printer, client, err := remoteSetup(cmd)
	if err != nil {
		return err
	}

	st, err := client.StartScan(cmd.Context(), args[0])
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.IsConflict() {
			return fmt.Errorf("server is busy: %s", apiErr.Detail)
		}
		return err
	}
	if !remoteScanWait {
		if printer.Format() == output.FormatTable {
			printer.Success(fmt.Sprintf("Scan %s of %s started", st.ScanID, st.Server))
			return nil
		}
		return printer.Print(st)
	}

	st, err = client.WaitScan(cmd.Context(), 500*time.Millisecond)
	if err != nil {
		return err
	}
	if err := printStatus(printer, st); err != nil {
		return err
	}
	if st.LastEvent != nil && st.LastEvent.Failed() {
		return errors.New(st.LastEvent.Error)
	}
	return nil
}

func runRemoteShares(cmd *cobra.Command, args []string) error {
	printer, client, err := remoteSetup(cmd)
	if err != nil {
		return err
	}

	list, err := client.ListShares(cmd.Context(), remoteSharesRisky)
	if err != nil {
		return err
	}
	return printer.Print(output.NewShareTable(list.Shares, false, printer.ColorEnabled()))
}

func runRemoteExport(cmd *cobra.Command, args []string) error {
	printer, client, err := remoteSetup(cmd)
	if err != nil {
		return err
	}

	var dest string
	if len(args) == 1 {
		dest = strings.TrimSpace(args[0])
	}
	if dest == "-" {
		return client.DownloadCSV(cmd.Context(), cmd.OutOrStdout())
	}

	res, err := client.Export(cmd.Context(), dest)
	if err != nil {
		return err
	}
	if printer.Format() != output.FormatTable {
		return printer.Print(res)
	}
	printer.Success(fmt.Sprintf("Server exported %d shares to %s", res.Records, res.Destination))
	return nil
}
