package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/sharescan/pkg/config"
	"github.com/marmos91/sharescan/pkg/directory"
	"github.com/marmos91/sharescan/pkg/export"
	"github.com/marmos91/sharescan/pkg/metrics"
	"github.com/marmos91/sharescan/pkg/scan"
)

const fixtureYAML = `
servers:
  - name: HOST
    shares:
      - name: Public
        type: disk
        permissions: 0x7F
      - name: ADMIN$
        type: disk
        special: true
        comment: Remote Admin
        permissions: 0x01
      - name: Laser
        type: printq
        info_status: 5
  - name: LOCKED
    enum_status: 5
`

func newTestRuntime(t *testing.T, opts ...Option) (*Runtime, string) {
	t.Helper()
	dir := t.TempDir()

	fixture := filepath.Join(dir, "fixture.yaml")
	require.NoError(t, os.WriteFile(fixture, []byte(fixtureYAML), 0644))

	cfg := config.GetDefaultConfig()
	cfg.Scan.Backend = "fixture"
	cfg.Scan.FixturePath = fixture
	cfg.Export.Path = filepath.Join(dir, "shares.csv")

	rt, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Shutdown(context.Background()) })
	return rt, dir
}

func TestScanAndExport(t *testing.T) {
	rt, _ := newTestRuntime(t)
	ctx := context.Background()

	var events []scan.Event
	rt.Subscribe(func(ev scan.Event) { events = append(events, ev) })

	id, err := rt.StartScan(ctx, `\\HOST`)
	require.NoError(t, err)
	rt.Wait()

	require.Len(t, events, 1)
	assert.Equal(t, scan.EventScanCompleted, events[0].Kind)
	assert.Equal(t, id, events[0].ScanID)
	assert.Equal(t, 3, events[0].Count)

	records := rt.Snapshot()
	require.Len(t, records, 3)
	assert.Equal(t, scan.PermissionAll, records[0].Permission)
	assert.Equal(t, scan.NoteAdministrative, records[1].Note)
	assert.Equal(t, scan.PermissionUnknown, records[2].Permission)

	dest, err := rt.ExportCSV(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, rt.ExportPath(), dest)

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := export.Decode(f)
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	assert.Equal(t, "Public", decoded[0].ShareName)
}

func TestWriteCSVMatchesFileExport(t *testing.T) {
	rt, dir := newTestRuntime(t)

	_, err := rt.StartScan(context.Background(), "HOST")
	require.NoError(t, err)
	rt.Wait()

	path := filepath.Join(dir, "other.csv")
	_, err = rt.ExportCSV(context.Background(), path)
	require.NoError(t, err)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)

	var buf bytesBuffer
	require.NoError(t, rt.WriteCSV(&buf))
	assert.Equal(t, onDisk, buf.data)
}

func TestEnumerationFailureLeavesStoreEmpty(t *testing.T) {
	rt, _ := newTestRuntime(t)

	_, err := rt.StartScan(context.Background(), "LOCKED")
	require.NoError(t, err)
	rt.Wait()

	st := rt.Status()
	assert.Equal(t, scan.StateIdle, st.State)
	require.NotNil(t, st.LastEvent)
	assert.Equal(t, scan.EventScanFailed, st.LastEvent.Kind)
	assert.Empty(t, rt.Snapshot())
}

func TestClearResults(t *testing.T) {
	rt, _ := newTestRuntime(t)

	_, err := rt.StartScan(context.Background(), "HOST")
	require.NoError(t, err)
	rt.Wait()
	require.NotEmpty(t, rt.Snapshot())

	rt.ClearResults()
	assert.Empty(t, rt.Snapshot())
}

func TestMetricsRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	rt, _ := newTestRuntime(t, WithRegistry(reg))
	assert.Same(t, reg, rt.Registry())

	_, err := rt.StartScan(context.Background(), "HOST")
	require.NoError(t, err)
	rt.Wait()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["sharescan_scans_total"])
	assert.True(t, names["sharescan_srvsvc_calls_total"])
}

func TestMetricsDisabledByDefault(t *testing.T) {
	rt, _ := newTestRuntime(t)
	assert.Nil(t, rt.Registry())
}

func TestShutdown(t *testing.T) {
	rt, _ := newTestRuntime(t)

	var hookCalls atomic.Int32
	rt.OnShutdown(func(context.Context) error {
		hookCalls.Add(1)
		return nil
	})

	_, err := rt.StartScan(context.Background(), "HOST")
	require.NoError(t, err)

	require.NoError(t, rt.Shutdown(context.Background()))
	assert.Equal(t, scan.StateIdle, rt.Status().State)
	assert.Len(t, rt.Snapshot(), 3)

	_, err = rt.StartScan(context.Background(), "HOST")
	assert.ErrorIs(t, err, ErrShutdown)

	require.NoError(t, rt.Shutdown(context.Background()))
	assert.Equal(t, int32(1), hookCalls.Load())
}

func TestShutdownReportsHookErrors(t *testing.T) {
	rt, _ := newTestRuntime(t)
	boom := errors.New("flush failed")
	rt.OnShutdown(func(context.Context) error { return boom })

	assert.ErrorIs(t, rt.Shutdown(context.Background()), boom)
}

// gatedClient blocks ListShares until release is closed and records any
// use after Close.
type gatedClient struct {
	entered chan struct{}
	release chan struct{}

	mu           sync.Mutex
	closed       bool
	usedAfterEnd bool
}

func newGatedClient() *gatedClient {
	return &gatedClient{entered: make(chan struct{}), release: make(chan struct{})}
}

func (c *gatedClient) touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.usedAfterEnd = true
	}
}

func (c *gatedClient) ListShares(ctx context.Context, server string) ([]directory.Share, error) {
	close(c.entered)
	<-c.release
	c.touch()
	return []directory.Share{{Name: "Public"}, {Name: "Docs"}}, nil
}

func (c *gatedClient) GetPermissions(ctx context.Context, server, share string) (directory.Permissions, error) {
	c.touch()
	return directory.Permissions{Mask: directory.AccessRead}, nil
}

func (c *gatedClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *gatedClient) state() (closed, usedAfterEnd bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.usedAfterEnd
}

func TestShutdownTimeoutKeepsClientUntilScanEnds(t *testing.T) {
	client := newGatedClient()
	rt, _ := newTestRuntime(t, WithClient(client))

	_, err := rt.StartScan(context.Background(), "HOST")
	require.NoError(t, err)
	<-client.entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = rt.Shutdown(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	closed, _ := client.state()
	assert.False(t, closed, "client closed while the scan was running")
	assert.Equal(t, scan.StateRunning, rt.Status().State)

	close(client.release)
	select {
	case <-rt.ClientClosed():
	case <-time.After(5 * time.Second):
		t.Fatal("client not closed after the scan ended")
	}

	closed, usedAfterEnd := client.state()
	assert.True(t, closed)
	assert.False(t, usedAfterEnd)
	assert.Len(t, rt.Snapshot(), 2)
}

func TestStartScanRacingShutdown(t *testing.T) {
	for i := 0; i < 50; i++ {
		client := newGatedClient()
		close(client.release)
		rt, _ := newTestRuntime(t, WithClient(client))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = rt.StartScan(context.Background(), "HOST")
		}()
		go func() {
			defer wg.Done()
			_ = rt.Shutdown(context.Background())
		}()
		wg.Wait()

		<-rt.ClientClosed()
		_, usedAfterEnd := client.state()
		require.False(t, usedAfterEnd, "scan used the client after Close (iteration %d)", i)
		assert.Equal(t, scan.StateIdle, rt.Status().State)
	}
}

type fakeServer struct {
	started chan struct{}
	stopped atomic.Bool
	fail    error
}

func (s *fakeServer) Start(ctx context.Context) error {
	close(s.started)
	if s.fail != nil {
		return s.fail
	}
	<-ctx.Done()
	return nil
}

func (s *fakeServer) Stop(context.Context) error {
	s.stopped.Store(true)
	return nil
}

func TestServe(t *testing.T) {
	t.Run("StopsOnCancel", func(t *testing.T) {
		rt, _ := newTestRuntime(t)
		srv := &fakeServer{started: make(chan struct{})}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- rt.Serve(ctx, srv) }()

		<-srv.started
		cancel()
		require.NoError(t, <-done)
		assert.True(t, srv.stopped.Load())

		_, err := rt.StartScan(context.Background(), "HOST")
		assert.ErrorIs(t, err, ErrShutdown)
	})

	t.Run("ServerFailure", func(t *testing.T) {
		rt, _ := newTestRuntime(t)
		boom := errors.New("listen failed")
		srv := &fakeServer{started: make(chan struct{}), fail: boom}

		err := rt.Serve(context.Background(), srv)
		assert.ErrorIs(t, err, boom)
	})
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Scan.Backend = "tape"

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNewUsesMetricsConfig(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Scan.Backend = "fixture"
	cfg.Scan.FixturePath = filepath.Join(t.TempDir(), "f.yaml")
	require.NoError(t, os.WriteFile(cfg.Scan.FixturePath, []byte(fixtureYAML), 0644))
	cfg.Metrics.Enabled = true

	rt, err := New(cfg)
	require.NoError(t, err)
	defer rt.Shutdown(context.Background())

	require.NotNil(t, rt.Registry())
	_, err = rt.StartScan(context.Background(), "HOST")
	require.NoError(t, err)
	rt.Wait()
	assert.Equal(t, 1.0, testutil.ToFloat64(rt.metrics.ScansTotal.WithLabelValues(metrics.ResultCompleted)))
}

type bytesBuffer struct{ data []byte }

func (b *bytesBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}
