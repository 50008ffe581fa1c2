package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config holds logger configuration
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

var (
	level slog.LevelVar

	mu       sync.RWMutex
	format   = "text"
	output   io.Writer = os.Stderr
	logFile  *os.File
	useColor = isTerminal(os.Stderr.Fd())
	slogger  *slog.Logger
)

func init() {
	reconfigure()
}

// reconfigure rebuilds the handler for the current output and format. The
// level is shared through a LevelVar and needs no rebuild.
func reconfigure() {
	mu.Lock()
	defer mu.Unlock()

	opts := &slog.HandlerOptions{Level: &level}
	if format == "json" {
		slogger = slog.New(slog.NewJSONHandler(output, opts))
		return
	}
	slogger = slog.New(newTextHandler(output, opts, useColor))
}

// Init applies cfg. Empty fields keep their current value. A file output is
// opened in append mode and is never truncated.
func Init(cfg Config) error {
	if cfg.Output != "" {
		if err := setOutput(cfg.Output); err != nil {
			return err
		}
	}
	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	reconfigure()
	return nil
}

func setOutput(dest string) error {
	var (
		w     io.Writer
		file  *os.File
		color bool
	)
	switch strings.ToLower(dest) {
	case "stdout":
		w, color = os.Stdout, isTerminal(os.Stdout.Fd())
	case "stderr":
		w, color = os.Stderr, isTerminal(os.Stderr.Fd())
	default:
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", dest, err)
		}
		w, file = f, f
	}

	mu.Lock()
	prev := logFile
	output, logFile, useColor = w, file, color
	mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Close releases the log file opened by Init, if any, and falls back to stderr.
func Close() error {
	mu.Lock()
	f := logFile
	logFile = nil
	if f != nil {
		output = os.Stderr
	}
	mu.Unlock()

	if f == nil {
		return nil
	}
	reconfigure()
	return f.Close()
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	switch strings.ToUpper(name) {
	case "DEBUG":
		level.Set(slog.LevelDebug)
	case "INFO":
		level.Set(slog.LevelInfo)
	case "WARN":
		level.Set(slog.LevelWarn)
	case "ERROR":
		level.Set(slog.LevelError)
	}
}

// SetFormat switches between text and json output. Unknown formats are ignored.
func SetFormat(name string) {
	name = strings.ToLower(name)
	if name != "text" && name != "json" {
		return
	}
	mu.Lock()
	format = name
	mu.Unlock()
	reconfigure()
}

func logAt(ctx context.Context, lvl slog.Level, msg string, args []any) {
	if lvl < level.Level() {
		return
	}
	mu.RLock()
	l := slogger
	mu.RUnlock()
	l.Log(ctx, lvl, msg, appendContextFields(ctx, args)...)
}

// Debug logs at debug level. Usage: Debug("message", "key1", value1)
func Debug(msg string, args ...any) { logAt(context.Background(), slog.LevelDebug, msg, args) }

// Info logs at info level.
func Info(msg string, args ...any) { logAt(context.Background(), slog.LevelInfo, msg, args) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { logAt(context.Background(), slog.LevelWarn, msg, args) }

// Error logs at error level.
func Error(msg string, args ...any) { logAt(context.Background(), slog.LevelError, msg, args) }

// DebugCtx logs at debug level, prefixed with the scan fields carried by ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelDebug, msg, args)
}

// InfoCtx logs at info level with the scan fields of ctx.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelInfo, msg, args)
}

// WarnCtx logs at warn level with the scan fields of ctx.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelWarn, msg, args)
}

// ErrorCtx logs at error level with the scan fields of ctx.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelError, msg, args)
}

// appendContextFields prepends the LogContext fields so they lead the line.
func appendContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	out := make([]any, 0, 10+len(args))
	for _, kv := range [...]struct{ key, val string }{
		{KeyTraceID, lc.TraceID},
		{KeySpanID, lc.SpanID},
		{KeyScanID, lc.ScanID},
		{KeyServer, lc.Server},
		{KeyShare, lc.Share},
	} {
		if kv.val != "" {
			out = append(out, kv.key, kv.val)
		}
	}
	return append(out, args...)
}
