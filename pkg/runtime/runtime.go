// Package runtime wires the share directory client, scan engine, result
// store and exporter into the object driven by the CLI and the HTTP API.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/sharescan/internal/logger"
	"github.com/marmos91/sharescan/pkg/config"
	"github.com/marmos91/sharescan/pkg/directory"
	"github.com/marmos91/sharescan/pkg/export"
	"github.com/marmos91/sharescan/pkg/metrics"
	"github.com/marmos91/sharescan/pkg/scan"
)

// DefaultShutdownTimeout bounds Shutdown when the configuration has none.
const DefaultShutdownTimeout = 30 * time.Second

// ErrShutdown is returned by StartScan once Shutdown has begun.
var ErrShutdown = errors.New("runtime is shutting down")

// AuxiliaryServer is an HTTP server (API, metrics) run alongside the engine.
type AuxiliaryServer interface {
	// Start serves until ctx is cancelled or the listener fails.
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runtime owns one scan engine and everything it needs.
type Runtime struct {
	client   directory.Client
	store    *scan.ResultStore
	engine   *scan.Engine
	exporter *export.Exporter
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	exportPath      string
	shutdownTimeout time.Duration

	mu        sync.Mutex
	closing   bool
	hooks     []func(context.Context) error
	closeOnce sync.Once
	closeErr  error

	// clientClosed is closed once the directory client has been closed.
	clientClosed chan struct{}
}

type options struct {
	client   directory.Client
	s3Client export.S3API
	registry *prometheus.Registry
}

// Option customizes New.
type Option func(*options)

// WithClient uses client instead of the backend named in the configuration.
func WithClient(client directory.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithS3Client uses client for s3:// export destinations.
func WithS3Client(client export.S3API) Option {
	return func(o *options) {
		o.s3Client = client
	}
}

// WithRegistry registers metrics with reg. Metrics are recorded when either
// this option is given or metrics.enabled is set.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// New builds a runtime from cfg.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	rt := &Runtime{
		store:           scan.NewResultStore(),
		exportPath:      cfg.Export.Path,
		shutdownTimeout: cfg.ShutdownTimeout,
		registry:        o.registry,
		clientClosed:    make(chan struct{}),
	}
	if rt.shutdownTimeout <= 0 {
		rt.shutdownTimeout = DefaultShutdownTimeout
	}

	if rt.registry == nil && cfg.Metrics.Enabled {
		rt.registry = prometheus.NewRegistry()
	}
	if rt.registry != nil {
		rt.metrics = metrics.New(rt.registry)
	}

	rt.client = o.client
	if rt.client == nil {
		client, err := directory.New(directory.Options{
			Backend:     cfg.Scan.Backend,
			Port:        cfg.Scan.Port,
			Username:    cfg.Scan.Username,
			Password:    cfg.Scan.Password,
			Domain:      cfg.Scan.Domain,
			DialTimeout: cfg.Scan.DialTimeout,
			CallTimeout: cfg.Scan.CallTimeout,
			PageSize:    cfg.Scan.PageSize.Uint32(),
			FixturePath: cfg.Scan.FixturePath,
			Metrics:     rt.metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create share directory client: %w", err)
		}
		rt.client = client
	}

	exportOpts := []export.Option{
		export.WithS3Config(export.S3Config{
			Region:          cfg.Export.S3.Region,
			Endpoint:        cfg.Export.S3.Endpoint,
			AccessKeyID:     cfg.Export.S3.AccessKeyID,
			SecretAccessKey: cfg.Export.S3.SecretAccessKey,
		}),
	}
	if o.s3Client != nil {
		exportOpts = append(exportOpts, export.WithS3Client(o.s3Client))
	}
	rt.exporter = export.NewExporter(export.Format{LegacyQuoting: cfg.Export.LegacyQuoting}, exportOpts...)

	rt.engine = scan.NewEngine(rt.client, rt.store, scan.WithMetrics(rt.metrics))

	logger.Debug("Runtime initialized",
		"backend", directory.ResolveBackend(cfg.Scan.Backend),
		"export", rt.exportPath,
		"metrics", rt.metrics != nil)

	return rt, nil
}

// StartScan begins a scan of server and returns its ID without waiting.
// The closing check and the start happen under one lock so that Shutdown
// never misses a scan it has to join.
func (r *Runtime) StartScan(ctx context.Context, server string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closing {
		return "", ErrShutdown
	}
	return r.engine.Start(ctx, server)
}

// ClearResults empties the result store. Records of a scan in flight keep
// arriving afterwards.
func (r *Runtime) ClearResults() {
	r.store.Clear()
}

// Snapshot returns a copy of the records gathered so far.
func (r *Runtime) Snapshot() []scan.ShareRecord {
	return r.store.Snapshot()
}

// ExportCSV writes the current snapshot to destination, or to the configured
// export path when destination is empty. It returns the destination used.
func (r *Runtime) ExportCSV(ctx context.Context, destination string) (string, error) {
	if destination == "" {
		destination = r.exportPath
	}
	return destination, r.exporter.Export(ctx, r.store.Snapshot(), destination)
}

// WriteCSV encodes the current snapshot to w.
func (r *Runtime) WriteCSV(w io.Writer) error {
	return export.Encode(w, r.store.Snapshot(), r.exporter.Format())
}

// ExportPath returns the configured export destination.
func (r *Runtime) ExportPath() string {
	return r.exportPath
}

// Subscribe registers fn for completion events.
func (r *Runtime) Subscribe(fn scan.Notifier) (unsubscribe func()) {
	return r.engine.Subscribe(fn)
}

// Wait blocks until the scan in flight, if any, has finished.
func (r *Runtime) Wait() {
	r.engine.Wait()
}

// Status reports the engine state and the last finished scan.
func (r *Runtime) Status() scan.Status {
	return r.engine.Status()
}

// Registry returns the metrics registry, or nil when metrics are off.
func (r *Runtime) Registry() *prometheus.Registry {
	return r.registry
}

// OnShutdown registers fn to run at the end of Shutdown, after the
// directory client is closed. Hooks run in registration order.
func (r *Runtime) OnShutdown(fn func(context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Serve runs the auxiliary servers until ctx is cancelled or one of them
// fails, then shuts the runtime down.
func (r *Runtime) Serve(ctx context.Context, servers ...AuxiliaryServer) error {
	errChan := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv AuxiliaryServer) {
			if err := srv.Start(ctx); err != nil {
				logger.Error("Server error", logger.Err(err))
				errChan <- err
			}
		}(srv)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", "reason", ctx.Err())
	case err := <-errChan:
		logger.Error("Server failed - initiating shutdown", logger.Err(err))
		serveErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Warn("Server shutdown error", logger.Err(err))
		}
	}

	return errors.Join(serveErr, r.Shutdown(shutdownCtx))
}

// Shutdown rejects new scans, waits for the scan in flight, closes the
// directory client and runs the shutdown hooks. Only the first call does
// any work; later calls return its result.
//
// When ctx expires before the scan ends, Shutdown returns the timeout and
// the client is closed only once the scan has finished with it.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closing = true
		hooks := append([]func(context.Context) error(nil), r.hooks...)
		r.mu.Unlock()

		var errs []error
		if err := r.engine.WaitContext(ctx); err != nil {
			logger.Warn("Scan still running at shutdown; closing the client when it ends", logger.Err(err))
			errs = append(errs, fmt.Errorf("waiting for scan: %w", err))
			go func() {
				r.engine.Wait()
				if err := r.closeClient(); err != nil {
					logger.Warn("Failed to close share directory client", logger.Err(err))
				}
			}()
		} else if err := r.closeClient(); err != nil {
			errs = append(errs, fmt.Errorf("closing share directory client: %w", err))
		}

		for _, hook := range hooks {
			if err := hook(ctx); err != nil {
				errs = append(errs, err)
			}
		}

		r.closeErr = errors.Join(errs...)
		logger.Debug("Runtime stopped")
	})
	return r.closeErr
}

// closeClient closes the directory client. No scan may be running.
func (r *Runtime) closeClient() error {
	defer close(r.clientClosed)
	return r.client.Close()
}

// ClientClosed is closed once the directory client has been released.
func (r *Runtime) ClientClosed() <-chan struct{} {
	return r.clientClosed
}
