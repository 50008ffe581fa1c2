package logger

import (
	"fmt"
	"log/slog"
)

// Field keys shared by every log statement, so text and JSON lines can be
// queried the same way.
const (
	KeyTraceID = "trace_id" // OpenTelemetry trace ID
	KeySpanID  = "span_id"  // OpenTelemetry span ID

	KeyScanID     = "scan_id"    // Scan identifier
	KeyServer     = "server"     // Target server as supplied by the caller
	KeyShare      = "share"      // Share network name
	KeyShareType  = "share_type" // Disk, PrintQueue, Device, IPC, Other
	KeyPermission = "permission" // All, Write, Read, Unknown
	KeyNote       = "note"       // Risk note attached to a share record
	KeyCount      = "count"      // Number of records produced
	KeyEntries    = "entries"    // Number of entries in an enumeration page
	KeyMask       = "mask"       // Raw share permission mask

	KeyDestination = "destination" // Export destination (path or s3 URL)
	KeyBytes       = "bytes"       // Bytes written

	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

// ScanID returns a slog.Attr for a scan identifier
func ScanID(id string) slog.Attr {
	return slog.String(KeyScanID, id)
}

// Server returns a slog.Attr for the target server
func Server(name string) slog.Attr {
	return slog.String(KeyServer, name)
}

// Count returns a slog.Attr for a record count
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

// Entries returns a slog.Attr for a number of entries
func Entries(n int) slog.Attr {
	return slog.Int(KeyEntries, n)
}

// Mask returns a slog.Attr for a permission mask, formatted as hex
func Mask(m uint32) slog.Attr {
	return slog.String(KeyMask, fmt.Sprintf("0x%02X", m))
}

// Destination returns a slog.Attr for an export destination
func Destination(d string) slog.Attr {
	return slog.String(KeyDestination, d)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
