package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/sharescan/internal/logger"
	"github.com/marmos91/sharescan/internal/telemetry"
	"github.com/marmos91/sharescan/pkg/api"
	"github.com/marmos91/sharescan/pkg/directory"
	"github.com/marmos91/sharescan/pkg/metrics"
	"github.com/marmos91/sharescan/pkg/runtime"
	"github.com/marmos91/sharescan/pkg/scan"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control API",
	Long: `Run sharescan as a service. Scans are started, inspected, cleared and
exported through the HTTP API on api.port. When metrics.enabled is set,
Prometheus metrics are served on metrics.port.

Requests to /api/v1 need a bearer token when api.jwt.secret is set; issue
one with "sharescan token".

Examples:
  # Serve with the default configuration
  sharescan serve

  # Serve with environment overrides
  SHARESCAN_API_PORT=9000 SHARESCAN_METRICS_ENABLED=true sharescan serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	InitLogger(cmd, cfg)
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "sharescan",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		_ = telemetryShutdown(context.Background())
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}

	rt, err := runtime.New(cfg)
	if err != nil {
		_ = profilingShutdown()
		_ = telemetryShutdown(context.Background())
		return err
	}
	rt.OnShutdown(telemetryShutdown)
	rt.OnShutdown(func(context.Context) error { return profilingShutdown() })

	rt.Subscribe(func(ev scan.Event) {
		if ev.Kind == scan.EventScanFailed {
			logger.Warn("Scan failed", logger.ScanID(ev.ScanID), logger.Server(ev.Server), logger.Err(ev.Err))
			return
		}
		logger.Info("Scan completed", logger.ScanID(ev.ScanID), logger.Server(ev.Server), logger.Count(ev.Count))
	})

	apiServer, err := api.NewServer(cfg.API, rt, Version)
	if err != nil {
		_ = rt.Shutdown(context.Background())
		return err
	}
	servers := []runtime.AuxiliaryServer{apiServer}

	if reg := rt.Registry(); reg != nil {
		servers = append(servers, metrics.NewServer(cfg.Metrics.Port, reg))
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	logger.Info("sharescan serving",
		"version", Version,
		"config", getConfigSource(cfgFile),
		"backend", directory.ResolveBackend(cfg.Scan.Backend),
		"api_port", cfg.API.Port,
		"telemetry", telemetry.IsEnabled(),
		"profiling", telemetry.IsProfilingEnabled())
	cmd.Printf("sharescan API listening on :%d (Ctrl+C to stop)\n", cfg.API.Port)

	if err := rt.Serve(ctx, servers...); err != nil {
		logger.Error("Server stopped with error", logger.Err(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}
