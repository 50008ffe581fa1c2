package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTimestamp(t *testing.T) {
	t.Run("TextHandler", func(t *testing.T) {
		ts := extractTimestamp("[2026-03-01 09:15:00] [INFO] Scan completed server=HOST")
		want := time.Date(2026, 3, 1, 9, 15, 0, 0, time.Local)
		assert.True(t, want.Equal(ts), "got %v", ts)
	})

	t.Run("JSONHandler", func(t *testing.T) {
		ts := extractTimestamp(`{"time":"2026-03-01T09:15:00.123Z","level":"INFO","msg":"Scan completed"}`)
		want := time.Date(2026, 3, 1, 9, 15, 0, 123000000, time.UTC)
		assert.True(t, want.Equal(ts), "got %v", ts)
	})

	t.Run("NoTimestamp", func(t *testing.T) {
		assert.True(t, extractTimestamp("panic: something else").IsZero())
		assert.True(t, extractTimestamp("[short]").IsZero())
	})
}

func TestShowLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sharescan.log")
	content := strings.Join([]string{
		"[2026-03-01 09:00:00] [INFO] Starting scan",
		"[2026-03-01 09:00:01] [DEBUG] Share enumerated",
		"  continuation line",
		"[2026-03-01 09:00:02] [INFO] Scan completed",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Run("LastLines", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, showLogs(&buf, path, 2, time.Time{}))
		assert.Equal(t, "  continuation line\n[2026-03-01 09:00:02] [INFO] Scan completed\n", buf.String())
	})

	t.Run("Since", func(t *testing.T) {
		var buf bytes.Buffer
		since := time.Date(2026, 3, 1, 9, 0, 1, 0, time.Local)
		require.NoError(t, showLogs(&buf, path, 100, since))

		out := buf.String()
		assert.NotContains(t, out, "Starting scan")
		assert.Contains(t, out, "Share enumerated")
		assert.Contains(t, out, "continuation line")
		assert.Contains(t, out, "Scan completed")
	})

	t.Run("MissingFile", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, showLogs(&buf, filepath.Join(t.TempDir(), "nope.log"), 10, time.Time{}))
	})
}
