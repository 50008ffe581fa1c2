package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/marmos91/sharescan/internal/logger"
	"github.com/marmos91/sharescan/pkg/scan"
)

// Runtime is the part of the scan runtime the API drives.
type Runtime interface {
	StartScan(ctx context.Context, server string) (string, error)
	Status() scan.Status
	Snapshot() []scan.ShareRecord
	ClearResults()
	WriteCSV(w io.Writer) error
	ExportCSV(ctx context.Context, destination string) (string, error)
}

// ScanHandler serves /api/v1/scan.
type ScanHandler struct {
	rt Runtime
}

// NewScanHandler creates a ScanHandler.
func NewScanHandler(rt Runtime) *ScanHandler {
	return &ScanHandler{rt: rt}
}

// StartScanRequest is the body of POST /api/v1/scan.
type StartScanRequest struct {
	Server string `json:"server" validate:"required"`
}

// Status handles GET /api/v1/scan.
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, newScanStatusResponse(h.rt.Status()))
}

// Start handles POST /api/v1/scan. It answers 202 once the scan has begun;
// completion is visible through Status.
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartScanRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}

	id, err := h.rt.StartScan(r.Context(), req.Server)
	if err != nil {
		var invalid *scan.InvalidInputError
		switch {
		case errors.As(err, &invalid):
			BadRequest(w, invalid.Error())
		case errors.Is(err, scan.ErrAlreadyRunning):
			Conflict(w, err.Error())
		default:
			logger.WarnCtx(r.Context(), "Scan request refused", logger.Err(err))
			ServiceUnavailable(w, err.Error())
		}
		return
	}

	WriteJSON(w, http.StatusAccepted, ScanStatusResponse{
		State:  scan.StateRunning.String(),
		ScanID: id,
		Server: req.Server,
	})
}
