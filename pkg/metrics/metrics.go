// Package metrics provides the Prometheus instrumentation for share scans.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Scan results used as the "result" label of ScansTotal.
const (
	ResultCompleted = "completed"
	ResultFailed    = "failed"
)

// Metrics tracks scan-related Prometheus metrics.
//
// All metrics use the sharescan_ prefix. Every recorder method is nil-safe so
// components can be built without instrumentation.
type Metrics struct {
	// ScansTotal counts finished scans by result
	ScansTotal *prometheus.CounterVec

	// ScanDuration tracks how long a full scan takes
	ScanDuration prometheus.Histogram

	// ScanRunning is 1 while a scan is in flight
	ScanRunning prometheus.Gauge

	// SharesTotal counts recorded shares by permission label
	SharesTotal *prometheus.CounterVec

	// PermissionLookupFailures counts shares recorded with unknown permissions
	PermissionLookupFailures prometheus.Counter

	// RPCCallsTotal counts SRVSVC calls by operation and status
	RPCCallsTotal *prometheus.CounterVec

	// RPCCallDuration tracks SRVSVC call latency
	RPCCallDuration *prometheus.HistogramVec
}

// New creates scan metrics and registers them with reg.
// Panics if registration fails (expected during initialization only).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharescan_scans_total",
				Help: "Total finished scans by result",
			},
			[]string{"result"},
		),
		ScanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sharescan_scan_duration_seconds",
				Help:    "Scan duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		ScanRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sharescan_scan_running",
				Help: "Whether a scan is currently running (1) or not (0)",
			},
		),
		SharesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharescan_shares_total",
				Help: "Total shares recorded by permission label",
			},
			[]string{"permission"},
		),
		PermissionLookupFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sharescan_permission_lookup_failures_total",
				Help: "Total shares whose permission lookup failed",
			},
		),
		RPCCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharescan_srvsvc_calls_total",
				Help: "Total share directory calls by operation and status",
			},
			[]string{"op", "status"},
		),
		RPCCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sharescan_srvsvc_call_duration_seconds",
				Help:    "Share directory call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}

	reg.MustRegister(
		m.ScansTotal,
		m.ScanDuration,
		m.ScanRunning,
		m.SharesTotal,
		m.PermissionLookupFailures,
		m.RPCCallsTotal,
		m.RPCCallDuration,
	)

	return m
}

// RecordScan records a finished scan.
func (m *Metrics) RecordScan(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(result).Inc()
	m.ScanDuration.Observe(duration.Seconds())
}

// SetRunning updates the running gauge.
func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.ScanRunning.Set(1)
	} else {
		m.ScanRunning.Set(0)
	}
}

// RecordShare records one share appended to the result store.
func (m *Metrics) RecordShare(permission string) {
	if m == nil {
		return
	}
	m.SharesTotal.WithLabelValues(permission).Inc()
}

// RecordPermissionLookupFailure records a share whose permissions were unavailable.
func (m *Metrics) RecordPermissionLookupFailure() {
	if m == nil {
		return
	}
	m.PermissionLookupFailures.Inc()
}

// RecordCall records one share directory call.
//
// Parameters:
//   - op: Operation name (e.g., "NetrShareEnum", "NetrShareGetInfo")
//   - status: Status name (e.g., "NERR_Success", "ERROR_ACCESS_DENIED")
//   - duration: Call latency
func (m *Metrics) RecordCall(op, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RPCCallsTotal.WithLabelValues(op, status).Inc()
	m.RPCCallDuration.WithLabelValues(op).Observe(duration.Seconds())
}
