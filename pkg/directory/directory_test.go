package directory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/sharescan/internal/protocol/smb/rpc"
	"github.com/marmos91/sharescan/pkg/metrics"
)

const testFixture = `
servers:
  - name: HOST
    page_size: 2
    shares:
      - name: Public
        type: disk
        comment: Team drop box
        permissions: 0x7F
        path: 'D:\Public'
      - name: ADMIN$
        type: disk
        special: true
        comment: Remote Admin
        permissions: 0x01
      - name: Reports
        permissions: 0x03
      - name: Laser
        type: printq
        info_status: 5
  - name: LOCKED
    enum_status: 5
    shares:
      - name: Hidden
`

func newFixtureClient(t *testing.T, opts ...RPCOption) *RPCClient {
	t.Helper()
	f, err := ParseFixture([]byte(testFixture))
	require.NoError(t, err)
	c := NewRPCClient(&FixtureOpener{Fixture: f}, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPermissions(t *testing.T) {
	tests := []struct {
		mask      uint32
		all       bool
		writeable bool
	}{
		{0x00, false, false},
		{AccessRead, false, false},
		{AccessRead | AccessWrite, false, true},
		{AccessAll &^ AccessPerm, false, true},
		{AccessAll, true, true},
		{0xFF, true, true},
		{AccessAll &^ AccessWrite, false, false},
	}
	for _, tt := range tests {
		p := Permissions{Mask: tt.mask}
		assert.Equal(t, tt.all, p.GrantsAll(), "GrantsAll(0x%02X)", tt.mask)
		assert.Equal(t, tt.writeable, p.GrantsWrite(), "GrantsWrite(0x%02X)", tt.mask)
	}
}

func TestHostName(t *testing.T) {
	assert.Equal(t, "HOST", HostName(`\\HOST`))
	assert.Equal(t, "HOST", HostName(`  \\HOST\Public `))
	assert.Equal(t, "10.0.0.5", HostName("10.0.0.5"))
	assert.Equal(t, "fs.example.com", HostName("//fs.example.com/share"))
	assert.Equal(t, "", HostName(`\\`))
	assert.Equal(t, `\\HOST`, UNCName("HOST"))
}

func TestListSharesFollowsPages(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := newFixtureClient(t, WithPageSize(128), WithMetrics(m))

	shares, err := c.ListShares(context.Background(), `\\HOST`)
	require.NoError(t, err)
	require.Len(t, shares, 4)

	assert.Equal(t, Share{Name: "Public", Type: rpc.STYPE_DISKTREE, Comment: "Team drop box"}, shares[0])
	assert.Equal(t, rpc.STYPE_DISKTREE|rpc.STYPE_SPECIAL, shares[1].Type)
	assert.Equal(t, "Reports", shares[2].Name)
	assert.Equal(t, rpc.STYPE_PRINTQ, shares[3].Type)

	// Two pages: one ERROR_MORE_DATA, one final.
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCCallsTotal.WithLabelValues(opShareEnum, "ERROR_MORE_DATA")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCCallsTotal.WithLabelValues(opShareEnum, "NERR_Success")))
}

func TestListSharesFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("AccessDenied", func(t *testing.T) {
		c := newFixtureClient(t)
		_, err := c.ListShares(ctx, "LOCKED")

		var enumErr *EnumerationError
		require.True(t, errors.As(err, &enumErr))
		assert.Equal(t, "LOCKED", enumErr.Server)
		assert.Equal(t, rpc.ERROR_ACCESS_DENIED, enumErr.Status)
	})

	t.Run("UnknownServer", func(t *testing.T) {
		c := newFixtureClient(t)
		_, err := c.ListShares(ctx, `\\NOWHERE`)

		var enumErr *EnumerationError
		require.True(t, errors.As(err, &enumErr))
		assert.Equal(t, rpc.ERROR_BAD_NETPATH, enumErr.Status)
	})

	t.Run("BlankServer", func(t *testing.T) {
		c := newFixtureClient(t)
		_, err := c.ListShares(ctx, `\\`)

		var enumErr *EnumerationError
		require.True(t, errors.As(err, &enumErr))
		assert.Equal(t, rpc.ERROR_INVALID_NAME, enumErr.Status)
	})
}

// stuckEnumPipe answers every NetrShareEnum with ERROR_MORE_DATA, one entry
// and the same resume handle.
type stuckEnumPipe struct {
	inner *rpc.Pipe
	out   bytes.Buffer
	calls int
}

func (p *stuckEnumPipe) Write(data []byte) (int, error) {
	hdr, err := rpc.ParseHeader(data)
	if err != nil || hdr.PacketType != rpc.PDURequest {
		return p.inner.Write(data)
	}
	req, err := rpc.ParseRequest(data)
	if err != nil {
		return 0, err
	}
	p.calls++
	resp := &rpc.Response{
		ContextID: req.ContextID,
		StubData: rpc.EncodeShareEnumResponse(
			[]rpc.ShareInfo1{{Name: "Loop", Type: rpc.STYPE_DISKTREE}}, 10, 7, rpc.ERROR_MORE_DATA),
	}
	for _, frag := range resp.EncodeFragments(hdr.CallID, rpc.DefaultMaxFrag) {
		p.out.Write(frag)
	}
	return len(data), nil
}

func (p *stuckEnumPipe) Read(buf []byte) (int, error) {
	if p.out.Len() > 0 {
		return p.out.Read(buf)
	}
	return p.inner.Read(buf)
}

func (p *stuckEnumPipe) Close() error { return p.inner.Close() }

type stuckEnumOpener struct {
	pipe *stuckEnumPipe
}

func (o *stuckEnumOpener) OpenPipe(ctx context.Context, server string) (io.ReadWriteCloser, error) {
	o.pipe = &stuckEnumPipe{inner: rpc.NewPipe(rpc.NewHandler(nil))}
	return o.pipe, nil
}

func TestListSharesStopsWhenResumeHandleRepeats(t *testing.T) {
	opener := &stuckEnumOpener{}
	c := NewRPCClient(opener)

	_, err := c.ListShares(context.Background(), `\\HOST`)

	var enumErr *EnumerationError
	require.True(t, errors.As(err, &enumErr))
	assert.Equal(t, `\\HOST`, enumErr.Server)
	assert.Contains(t, err.Error(), "no progress at resume handle 7")
	assert.Equal(t, 2, opener.pipe.calls)
}

func TestGetPermissions(t *testing.T) {
	ctx := context.Background()
	c := newFixtureClient(t)

	perms, err := c.GetPermissions(ctx, `\\HOST`, "Public")
	require.NoError(t, err)
	assert.True(t, perms.GrantsAll())
	assert.Equal(t, `D:\Public`, perms.Path)

	perms, err = c.GetPermissions(ctx, `\\HOST`, "Reports")
	require.NoError(t, err)
	assert.False(t, perms.GrantsAll())
	assert.True(t, perms.GrantsWrite())

	_, err = c.GetPermissions(ctx, `\\HOST`, "Laser")
	var lookupErr *PermissionLookupError
	require.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, "Laser", lookupErr.Share)
	assert.Equal(t, rpc.ERROR_ACCESS_DENIED, lookupErr.Status)

	// The connection survives a failed lookup.
	_, err = c.GetPermissions(ctx, `\\HOST`, "ADMIN$")
	assert.NoError(t, err)
}

func TestReleaseReopens(t *testing.T) {
	ctx := context.Background()
	c := newFixtureClient(t)

	_, err := c.ListShares(ctx, "host")
	require.NoError(t, err)
	require.Len(t, c.conns, 1)

	c.Release(`\\HOST`)
	assert.Empty(t, c.conns)

	_, err = c.GetPermissions(ctx, "HOST", "Public")
	assert.NoError(t, err)
}

func TestParseFixtureRejectsBadInput(t *testing.T) {
	_, err := ParseFixture([]byte("servers:\n  - shares: []\n"))
	assert.Error(t, err)

	_, err = ParseFixture([]byte("servers:\n  - name: A\n    shares:\n      - name: X\n        type: tape\n"))
	assert.Error(t, err)

	_, err = ParseFixture([]byte("servers: ["))
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testFixture), 0644))

	c, err := New(Options{Backend: BackendFixture, FixturePath: path})
	require.NoError(t, err)
	defer c.Close()

	shares, err := c.ListShares(context.Background(), "HOST")
	require.NoError(t, err)
	assert.Len(t, shares, 4)

	_, err = New(Options{Backend: BackendFixture})
	assert.Error(t, err)

	_, err = New(Options{Backend: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrUnsupportedBackend)

	c, err = New(Options{Backend: BackendSMB2})
	require.NoError(t, err)
	assert.IsType(t, &RPCClient{}, c)
}

func TestResolveBackend(t *testing.T) {
	assert.Equal(t, defaultBackend, ResolveBackend(""))
	assert.Equal(t, defaultBackend, ResolveBackend("AUTO"))
	assert.Equal(t, BackendFixture, ResolveBackend(" fixture "))
}
