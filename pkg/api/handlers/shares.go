package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/marmos91/sharescan/internal/logger"
	"github.com/marmos91/sharescan/pkg/export"
	"github.com/marmos91/sharescan/pkg/scan"
)

// SharesHandler serves the result store and its exports.
type SharesHandler struct {
	rt Runtime
}

// NewSharesHandler creates a SharesHandler.
func NewSharesHandler(rt Runtime) *SharesHandler {
	return &SharesHandler{rt: rt}
}

// ExportRequest is the body of POST /api/v1/export. An empty destination
// uses the configured export path.
type ExportRequest struct {
	Destination string `json:"destination"`
}

// List handles GET /api/v1/shares[?risky=true].
func (h *SharesHandler) List(w http.ResponseWriter, r *http.Request) {
	records := h.rt.Snapshot()

	if v := r.URL.Query().Get("risky"); v != "" {
		risky, err := strconv.ParseBool(v)
		if err != nil {
			BadRequest(w, "risky must be a boolean")
			return
		}
		if risky {
			records = filterRisky(records)
		}
	}

	if records == nil {
		records = []scan.ShareRecord{}
	}
	WriteJSONOK(w, SharesResponse{Count: len(records), Shares: records})
}

// Clear handles DELETE /api/v1/shares.
func (h *SharesHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.rt.ClearResults()
	WriteNoContent(w)
}

// CSV handles GET /api/v1/shares/export.csv.
func (h *SharesHandler) CSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.rt.WriteCSV(&buf); err != nil {
		logger.ErrorCtx(r.Context(), "Failed to encode report", logger.Err(err))
		InternalServerError(w, "Failed to encode report")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="shares.csv"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Export handles POST /api/v1/export.
func (h *SharesHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if !decodeJSONBody(w, r, &req, true) {
		return
	}

	records := len(h.rt.Snapshot())
	dest, err := h.rt.ExportCSV(r.Context(), req.Destination)
	if err != nil {
		var exportErr *export.ExportError
		if errors.As(err, &exportErr) {
			InternalServerError(w, exportErr.Error())
			return
		}
		InternalServerError(w, err.Error())
		return
	}

	WriteJSONOK(w, ExportResponse{Destination: dest, Records: records})
}

func filterRisky(records []scan.ShareRecord) []scan.ShareRecord {
	out := make([]scan.ShareRecord, 0, len(records))
	for _, rec := range records {
		if rec.Risky() {
			out = append(out, rec)
		}
	}
	return out
}
