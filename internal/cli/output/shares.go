package output

import (
	"encoding/json"

	"github.com/marmos91/sharescan/pkg/scan"
)

// ShareTable renders scan records. It marshals to JSON and YAML as the
// plain record list.
type ShareTable struct {
	Records []scan.ShareRecord
	Color   bool
}

// NewShareTable creates a table of records, optionally limited to the
// risky ones.
func NewShareTable(records []scan.ShareRecord, riskyOnly, color bool) *ShareTable {
	if riskyOnly {
		filtered := make([]scan.ShareRecord, 0, len(records))
		for _, r := range records {
			if r.Risky() {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}
	if records == nil {
		records = []scan.ShareRecord{}
	}
	return &ShareTable{Records: records, Color: color}
}

// Headers implements TableRenderer.
func (t *ShareTable) Headers() []string {
	return []string{"Server", "Share", "Type", "Comment", "Permissions", "Notes"}
}

// Rows implements TableRenderer.
func (t *ShareTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.Records))
	for _, r := range t.Records {
		rows = append(rows, []string{
			r.Server,
			r.ShareName,
			string(r.ShareType),
			r.Comment,
			colorize(permissionColor(r.Permission), string(r.Permission), t.Color),
			string(r.Note),
		})
	}
	return rows
}

// MarshalJSON renders the records only.
func (t *ShareTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Records)
}

// MarshalYAML renders the records only.
func (t *ShareTable) MarshalYAML() (any, error) {
	return t.Records, nil
}

func permissionColor(p scan.PermissionLabel) string {
	switch p.Severity() {
	case 3:
		return ansiRed
	case 2, 1:
		return ansiYellow
	default:
		return ansiGreen
	}
}
