package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer for testing.
// Returns the buffer and a cleanup function to restore original output.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false
	mu.Unlock()

	reconfigure()

	return buf, func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		SetFormat("text")
		SetLevel("INFO")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestLinePrefix(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	Info("Scan started", KeyServer, `\\HOST`)

	line := strings.TrimSuffix(buf.String(), "\n")
	assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] \[INFO\] Scan started server=\\\\HOST$`, line)
}

func TestLevelFiltering(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("WARN")
	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "[WARN] warn message")
	assert.Contains(t, out, "[ERROR] error message")

	buf.Reset()
	SetLevel("bogus")
	Info("still filtered")
	assert.Empty(t, buf.String())
}

func TestWriteFailuresAreSwallowed(t *testing.T) {
	h := newTextHandler(failingWriter{}, nil, false)

	require.NotPanics(t, func() {
		slog.New(h).Info("lost line")
	})
	assert.NoError(t, h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "lost line", 0)))
}

func TestTextHandlerBoundAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(newTextHandler(&buf, nil, false)).
		With(KeyServer, "HOST").
		WithGroup("rpc").
		With("op", "NetrShareEnum")

	l.Debug("filtered")
	l.Info("Page received", Entries(3), slog.Group("resume", "handle", 7), DurationMs(1.5))

	line := strings.TrimSuffix(buf.String(), "\n")
	assert.Regexp(t, `^\[[0-9: -]+\] \[INFO\] Page received `+
		`server=HOST rpc\.op=NetrShareEnum rpc\.entries=3 rpc\.resume\.handle=7 rpc\.duration_ms=1\.500$`, line)
}

func TestContextFields(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	SetFormat("json")

	lc := NewScanContext("scan-1", `\\HOST`).WithShare("Public").WithTrace("abc123", "def456")
	InfoCtx(WithContext(context.Background(), lc), "Share recorded", KeyPermission, "Write")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "scan-1", entry[KeyScanID])
	assert.Equal(t, `\\HOST`, entry[KeyServer])
	assert.Equal(t, "Public", entry[KeyShare])
	assert.Equal(t, "abc123", entry[KeyTraceID])
	assert.Equal(t, "Write", entry[KeyPermission])

	buf.Reset()
	require.NotPanics(t, func() {
		InfoCtx(context.Background(), "no context")
	})
	assert.Contains(t, buf.String(), "no context")
}

func TestLogContextCopies(t *testing.T) {
	lc := NewScanContext("scan-1", "HOST")
	withShare := lc.WithShare("C$")
	traced := withShare.WithTrace("abc", "def")

	assert.Empty(t, lc.Share)
	assert.Equal(t, "C$", traced.Share)
	assert.Equal(t, "abc", traced.TraceID)
	assert.Empty(t, withShare.TraceID)

	var nilCtx *LogContext
	assert.Nil(t, nilCtx.WithShare("x"))
	assert.Zero(t, nilCtx.DurationMs())
}

func TestInitAppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sharescan.log")
	t.Cleanup(func() {
		_ = Close()
		SetLevel("INFO")
	})

	require.NoError(t, Init(Config{Level: "INFO", Format: "text", Output: path}))
	Info("first run")
	require.NoError(t, Close())

	require.NoError(t, Init(Config{Output: path}))
	Info("second run")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "first run")
	assert.Contains(t, lines[1], "second run")
	assert.NotContains(t, string(data), "\033[")
}

func TestInitFailsOnUnwritablePath(t *testing.T) {
	err := Init(Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	assert.Error(t, err)
}

func TestConcurrentLogging(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")

	const goroutines = 8
	const perGoroutine = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				Info("share recorded", "worker", id, "n", j)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, goroutines*perGoroutine)
}

func TestFieldHelpers(t *testing.T) {
	assert.Equal(t, "", Err(nil).Key)
	assert.Equal(t, "0x7F", Mask(0x7F).Value.String())
	assert.Equal(t, KeyDestination, Destination("s3://b/k").Key)
}
