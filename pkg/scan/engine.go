// Package scan discovers the shares of a server, classifies their exposure
// and accumulates the results.
package scan

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/sharescan/internal/logger"
	"github.com/marmos91/sharescan/internal/telemetry"
	"github.com/marmos91/sharescan/pkg/directory"
	"github.com/marmos91/sharescan/pkg/metrics"
)

// State is the lifecycle state of the engine.
type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// EventKind tells how a scan ended.
type EventKind string

const (
	EventScanCompleted EventKind = "completed"
	EventScanFailed    EventKind = "failed"
)

// Event is delivered exactly once per scan, after the engine is idle again.
type Event struct {
	Kind      EventKind
	ScanID    string
	Server    string
	Count     int
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// Notifier receives scan completion events. It runs on the scan goroutine
// and may start the next scan.
type Notifier func(Event)

// Status is a point-in-time view of the engine.
type Status struct {
	State     State
	ScanID    string
	Server    string
	LastEvent *Event
}

type task struct {
	id      string
	server  string
	started time.Time
	done    chan struct{}
}

type subscriber struct {
	id int
	fn Notifier
}

// Engine runs at most one scan at a time in the background.
type Engine struct {
	client  directory.Client
	store   *ResultStore
	metrics *metrics.Metrics

	state atomic.Int32

	mu          sync.Mutex
	current     *task
	last        *Event
	subscribers []subscriber
	nextSubID   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records scan metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an idle engine that lists shares with client and
// appends classified records to store.
func NewEngine(client directory.Client, store *ResultStore, opts ...Option) *Engine {
	e := &Engine{
		client: client,
		store:  store,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins scanning server and returns its scan ID without waiting.
//
// It fails with *AlreadyRunningError while another scan is in flight and
// with *InvalidInputError for a blank server. Neither changes any state.
// Cancelling ctx does not stop the scan; its values are kept for logging
// and tracing.
func (e *Engine) Start(ctx context.Context, server string) (string, error) {
	if State(e.state.Load()) == StateRunning {
		return "", e.alreadyRunning()
	}
	if strings.TrimSpace(server) == "" {
		return "", &InvalidInputError{Field: "server", Reason: "must not be blank"}
	}
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return "", e.alreadyRunning()
	}

	t := &task{
		id:      uuid.NewString(),
		server:  server,
		started: time.Now(),
		done:    make(chan struct{}),
	}

	e.mu.Lock()
	e.current = t
	e.mu.Unlock()

	e.metrics.SetRunning(true)
	go e.run(context.WithoutCancel(ctx), t)

	return t.id, nil
}

func (e *Engine) alreadyRunning() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := &AlreadyRunningError{}
	if e.current != nil {
		err.ScanID = e.current.id
		err.Server = e.current.server
	}
	return err
}

func (e *Engine) run(ctx context.Context, t *task) {
	lc := logger.NewScanContext(t.id, t.server)
	ctx, span := telemetry.StartScanSpan(ctx, t.id, t.server)
	lc = lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	logger.InfoCtx(ctx, "Scan started")

	count, err := e.scanSafely(ctx, t)

	ev := Event{
		Kind:      EventScanCompleted,
		ScanID:    t.id,
		Server:    t.server,
		Count:     count,
		StartedAt: t.started,
		Duration:  time.Since(t.started),
	}
	if err != nil {
		ev.Kind = EventScanFailed
		ev.Err = err
		ev.Count = 0
		logger.ErrorCtx(ctx, "Scan failed", logger.Err(err), logger.DurationMs(lc.DurationMs()))
		e.metrics.RecordScan(metrics.ResultFailed, ev.Duration)
	} else {
		logger.InfoCtx(ctx, "Scan completed", logger.Count(count), logger.DurationMs(lc.DurationMs()))
		e.metrics.RecordScan(metrics.ResultCompleted, ev.Duration)
	}
	span.SetAttributes(telemetry.ShareCount(count))
	telemetry.EndSpan(span, err)

	e.mu.Lock()
	e.last = &ev
	subs := make([]subscriber, len(e.subscribers))
	copy(subs, e.subscribers)
	e.mu.Unlock()

	e.metrics.SetRunning(false)
	e.state.Store(int32(StateIdle))

	for _, s := range subs {
		notify(ctx, s.fn, ev)
	}

	close(t.done)

	e.mu.Lock()
	if e.current == t {
		e.current = nil
	}
	e.mu.Unlock()
}

// scanSafely turns a panic inside the scan into a failure.
func (e *Engine) scanSafely(ctx context.Context, t *task) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan panicked: %v", r)
		}
	}()
	return e.scan(ctx, t)
}

func (e *Engine) scan(ctx context.Context, t *task) (int, error) {
	if r, ok := e.client.(directory.Releaser); ok {
		defer r.Release(t.server)
	}

	shares, err := e.client.ListShares(ctx, t.server)
	if err != nil {
		return 0, err
	}
	logger.InfoCtx(ctx, "Shares enumerated", logger.Entries(len(shares)))

	count := 0
	for _, sh := range shares {
		if sh.Name == "" {
			logger.WarnCtx(ctx, "Skipping share with empty name", "type", sh.Type)
			continue
		}

		shareCtx := logger.WithContext(ctx, logger.FromContext(ctx).WithShare(sh.Name))

		perms, lookupErr := e.client.GetPermissions(shareCtx, t.server, sh.Name)
		if lookupErr != nil {
			logger.WarnCtx(shareCtx, "Permissions unavailable", logger.Err(lookupErr))
			e.metrics.RecordPermissionLookupFailure()
		}

		label, note := Classify(sh.Name, perms, lookupErr)
		rec := ShareRecord{
			Server:     t.server,
			ShareName:  sh.Name,
			ShareType:  ShareTypeOf(sh.Type),
			Comment:    sh.Comment,
			Permission: label,
			Note:       note,
			Special:    isSpecial(sh.Type),
		}
		e.store.Append(rec)
		e.metrics.RecordShare(string(label))
		count++

		logger.DebugCtx(shareCtx, "Share classified",
			logger.KeyShareType, string(rec.ShareType),
			logger.KeyPermission, string(label),
			logger.KeyNote, string(note),
			logger.Mask(perms.Mask))
	}

	return count, nil
}

func notify(ctx context.Context, fn Notifier, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCtx(ctx, "Scan notifier panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn(ev)
}

// Subscribe registers fn for completion events. The returned function
// removes it again.
func (e *Engine) Subscribe(fn Notifier) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextSubID++
	id := e.nextSubID
	e.subscribers = append(e.subscribers, subscriber{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.subscribers {
			if s.id == id {
				e.subscribers = append(e.subscribers[:i], e.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Wait blocks until the scan in flight, if any, has finished and its
// notifiers have returned.
func (e *Engine) Wait() {
	e.mu.Lock()
	t := e.current
	e.mu.Unlock()

	if t != nil {
		<-t.done
	}
}

// WaitContext is Wait bounded by ctx.
func (e *Engine) WaitContext(ctx context.Context) error {
	e.mu.Lock()
	t := e.current
	e.mu.Unlock()

	if t == nil {
		return nil
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

// LastEvent returns the event of the most recent finished scan.
func (e *Engine) LastEvent() (Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return Event{}, false
	}
	return *e.last, true
}

// Status returns the current state, the scan in flight and the last event.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{State: State(e.state.Load())}
	if e.current != nil && st.State == StateRunning {
		st.ScanID = e.current.id
		st.Server = e.current.server
	}
	if e.last != nil {
		ev := *e.last
		st.LastEvent = &ev
	}
	return st
}
