package apiclient

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/marmos91/sharescan/pkg/scan"
)

// SharesList is the body of GET /api/v1/shares.
type SharesList struct {
	Count  int                `json:"count"`
	Shares []scan.ShareRecord `json:"shares"`
}

// ExportResult is the body of POST /api/v1/export.
type ExportResult struct {
	Destination string `json:"destination"`
	Records     int    `json:"records"`
}

// ExportRequest is the optional body of POST /api/v1/export.
type ExportRequest struct {
	Destination string `json:"destination,omitempty"`
}

// ListShares returns the results of the last scan, only the risky ones
// when riskyOnly is set.
func (c *Client) ListShares(ctx context.Context, riskyOnly bool) (*SharesList, error) {
	path := "/api/v1/shares"
	if riskyOnly {
		path += "?" + url.Values{"risky": {strconv.FormatBool(true)}}.Encode()
	}
	return getResource[SharesList](ctx, c, path)
}

// ClearShares empties the server's result store.
func (c *Client) ClearShares(ctx context.Context) error {
	return c.delete(ctx, "/api/v1/shares")
}

// Export asks the server to write its CSV report to destination, or to its
// configured export path when destination is empty.
func (c *Client) Export(ctx context.Context, destination string) (*ExportResult, error) {
	return createResource[ExportResult](ctx, c, "/api/v1/export", ExportRequest{Destination: destination})
}

// DownloadCSV streams the CSV report to w.
func (c *Client) DownloadCSV(ctx context.Context, w io.Writer) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/shares/export.csv", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/csv")

	body, _, err := c.send(req)
	if err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}
