package apiclient

import (
	"context"
	"time"

	"github.com/marmos91/sharescan/pkg/scan"
)

// ScanEvent is the outcome of a finished scan.
type ScanEvent struct {
	Kind       string    `json:"kind"`
	ScanID     string    `json:"scan_id"`
	Server     string    `json:"server"`
	Count      int       `json:"count"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// Failed reports whether the scan ended in an enumeration failure.
func (e *ScanEvent) Failed() bool {
	return e.Kind == string(scan.EventScanFailed)
}

// ScanStatus is the state of the scan engine.
type ScanStatus struct {
	State     string     `json:"state"`
	ScanID    string     `json:"scan_id,omitempty"`
	Server    string     `json:"server,omitempty"`
	LastEvent *ScanEvent `json:"last_event,omitempty"`
}

// Running reports whether a scan is in progress.
func (s *ScanStatus) Running() bool {
	return s.State == scan.StateRunning.String()
}

// StartScanRequest is the body of POST /api/v1/scan.
type StartScanRequest struct {
	Server string `json:"server"`
}

// ScanStatus returns the current engine state.
func (c *Client) ScanStatus(ctx context.Context) (*ScanStatus, error) {
	return getResource[ScanStatus](ctx, c, "/api/v1/scan")
}

// StartScan starts a scan of server. A scan already in progress yields an
// *APIError for which IsConflict is true.
func (c *Client) StartScan(ctx context.Context, server string) (*ScanStatus, error) {
	return createResource[ScanStatus](ctx, c, "/api/v1/scan", StartScanRequest{Server: server})
}

// WaitScan polls the engine every interval until it is idle and returns the
// final status.
func (c *Client) WaitScan(ctx context.Context, interval time.Duration) (*ScanStatus, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		st, err := c.ScanStatus(ctx)
		if err != nil {
			return nil, err
		}
		if !st.Running() {
			return st, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
