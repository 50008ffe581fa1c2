// Package export writes scan results as a CSV report.
//
// The report is UTF-8 with a byte order mark, starts with the header
// Server,Share,Type,Comment,Permissions,Notes and quotes every field.
package export

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/marmos91/sharescan/pkg/scan"
)

// Header is the first line of every report.
var Header = []string{"Server", "Share", "Type", "Comment", "Permissions", "Notes"}

// Format controls report encoding.
type Format struct {
	// LegacyQuoting writes embedded double quotes as-is instead of doubling
	// them, matching reports produced by older scanners.
	LegacyQuoting bool
}

// Encode writes records as a report to w.
func Encode(w io.Writer, records []scan.ShareRecord, f Format) error {
	tw := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	bw := bufio.NewWriter(tw)

	writeRow(bw, Header, f)
	for _, r := range records {
		writeRow(bw, []string{
			r.Server,
			r.ShareName,
			string(r.ShareType),
			r.Comment,
			string(r.Permission),
			string(r.Note),
		}, f)
	}

	if err := bw.Flush(); err != nil {
		return err
	}
	return tw.Close()
}

// Marshal returns the report bytes for records.
func Marshal(records []scan.ShareRecord, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, records, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRow(w *bufio.Writer, fields []string, f Format) {
	for i, field := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		if f.LegacyQuoting {
			w.WriteString(field)
		} else {
			w.WriteString(strings.ReplaceAll(field, `"`, `""`))
		}
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}

// Decode parses a report. A leading byte order mark is optional.
// Reports written with legacy quoting decode exactly unless a field
// contains a double quote.
func Decode(r io.Reader) ([]scan.ShareRecord, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.FieldsPerRecord = len(Header)
	cr.LazyQuotes = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty report")
	}
	if err != nil {
		return nil, fmt.Errorf("read report header: %w", err)
	}
	for i, name := range Header {
		if head[i] != name {
			return nil, fmt.Errorf("unexpected report header %q", strings.Join(head, ","))
		}
	}

	var out []scan.ShareRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read report: %w", err)
		}
		out = append(out, scan.ShareRecord{
			Server:     row[0],
			ShareName:  row[1],
			ShareType:  scan.ShareType(row[2]),
			Comment:    row[3],
			Permission: scan.PermissionLabel(row[4]),
			Note:       scan.RiskNote(row[5]),
		})
	}
}
