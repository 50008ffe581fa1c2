package handlers

import (
	"time"

	"github.com/marmos91/sharescan/pkg/scan"
)

// Response is the envelope of health responses.
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func healthyResponse(data any) Response {
	return Response{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventResponse is the JSON form of a scan completion event.
type EventResponse struct {
	Kind       string    `json:"kind"`
	ScanID     string    `json:"scan_id"`
	Server     string    `json:"server"`
	Count      int       `json:"count"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// ScanStatusResponse is the body of GET and POST /api/v1/scan.
type ScanStatusResponse struct {
	State     string         `json:"state"`
	ScanID    string         `json:"scan_id,omitempty"`
	Server    string         `json:"server,omitempty"`
	LastEvent *EventResponse `json:"last_event,omitempty"`
}

func newEventResponse(ev *scan.Event) *EventResponse {
	if ev == nil {
		return nil
	}
	resp := &EventResponse{
		Kind:       string(ev.Kind),
		ScanID:     ev.ScanID,
		Server:     ev.Server,
		Count:      ev.Count,
		StartedAt:  ev.StartedAt.UTC(),
		DurationMs: ev.Duration.Milliseconds(),
	}
	if ev.Err != nil {
		resp.Error = ev.Err.Error()
	}
	return resp
}

func newScanStatusResponse(st scan.Status) ScanStatusResponse {
	return ScanStatusResponse{
		State:     st.State.String(),
		ScanID:    st.ScanID,
		Server:    st.Server,
		LastEvent: newEventResponse(st.LastEvent),
	}
}

// SharesResponse is the body of GET /api/v1/shares.
type SharesResponse struct {
	Count  int                `json:"count"`
	Shares []scan.ShareRecord `json:"shares"`
}

// ExportResponse is the body of POST /api/v1/export.
type ExportResponse struct {
	Destination string `json:"destination"`
	Records     int    `json:"records"`
}
