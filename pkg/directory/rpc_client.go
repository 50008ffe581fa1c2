package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/sharescan/internal/logger"
	"github.com/marmos91/sharescan/internal/protocol/smb/rpc"
	"github.com/marmos91/sharescan/internal/telemetry"
	"github.com/marmos91/sharescan/pkg/metrics"
)

const (
	opShareEnum    = "NetrShareEnum"
	opShareGetInfo = "NetrShareGetInfo"
)

// PipeOpener opens the srvsvc named pipe of a server.
type PipeOpener interface {
	OpenPipe(ctx context.Context, server string) (io.ReadWriteCloser, error)
}

// maxEnumPages bounds one enumeration against servers that keep reporting
// ERROR_MORE_DATA.
const maxEnumPages = 4096

// RPCClient implements Client with SRVSVC calls over a named pipe.
// One bound pipe is kept per server until Release or Close.
type RPCClient struct {
	opener      PipeOpener
	pageSize    uint32
	callTimeout time.Duration
	metrics     *metrics.Metrics

	mu    sync.Mutex
	conns map[string]*rpc.Conn
}

// RPCOption configures an RPCClient.
type RPCOption func(*RPCClient)

// WithPageSize sets the preferred maximum length of one NetrShareEnum page.
// Zero requests everything in one page.
func WithPageSize(n uint32) RPCOption {
	return func(c *RPCClient) {
		if n == 0 {
			n = rpc.MaxPreferredLength
		}
		c.pageSize = n
	}
}

// WithCallTimeout bounds every SRVSVC call.
func WithCallTimeout(d time.Duration) RPCOption {
	return func(c *RPCClient) {
		c.callTimeout = d
	}
}

// WithMetrics records call counts and latency.
func WithMetrics(m *metrics.Metrics) RPCOption {
	return func(c *RPCClient) {
		c.metrics = m
	}
}

// NewRPCClient creates a client that reaches servers through opener.
func NewRPCClient(opener PipeOpener, opts ...RPCOption) *RPCClient {
	c := &RPCClient{
		opener:   opener,
		pageSize: rpc.MaxPreferredLength,
		conns:    make(map[string]*rpc.Conn),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListShares enumerates every share of server, following resume handles
// while the server reports ERROR_MORE_DATA.
func (c *RPCClient) ListShares(ctx context.Context, server string) ([]Share, error) {
	ctx, span := telemetry.StartDirectorySpan(ctx, telemetry.SpanListShares, server)

	shares, err := c.listShares(ctx, server)
	if err != nil {
		c.Release(server)
		enumErr := newEnumerationError(server, err)
		telemetry.EndSpan(span, enumErr)
		return nil, enumErr
	}

	span.SetAttributes(telemetry.ShareCount(len(shares)))
	telemetry.EndSpan(span, nil)
	return shares, nil
}

func (c *RPCClient) listShares(ctx context.Context, server string) ([]Share, error) {
	conn, err := c.conn(ctx, server)
	if err != nil {
		return nil, err
	}

	var (
		out    []Share
		resume uint32
	)
	for page := 1; ; page++ {
		var res *rpc.ShareEnumResult
		err := c.call(ctx, opShareEnum, func(ctx context.Context) error {
			var err error
			res, err = conn.ShareEnum(ctx, UNCName(server), c.pageSize, resume)
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, s := range res.Shares {
			out = append(out, Share{Name: s.Name, Type: s.Type, Comment: s.Comment})
		}
		logger.DebugCtx(ctx, "Share enum page received",
			"page", page, logger.Entries(len(res.Shares)), "total", res.TotalEntries)

		if !res.More() {
			return out, nil
		}
		if res.ResumeHandle == resume {
			return nil, fmt.Errorf("%s made no progress at resume handle %d", opShareEnum, resume)
		}
		if page >= maxEnumPages {
			return nil, fmt.Errorf("%s still has more data after %d pages", opShareEnum, page)
		}
		resume = res.ResumeHandle
	}
}

// GetPermissions fetches the level-502 information of one share.
func (c *RPCClient) GetPermissions(ctx context.Context, server, share string) (Permissions, error) {
	ctx, span := telemetry.StartDirectorySpan(ctx, telemetry.SpanGetPermissions, server, telemetry.Share(share))

	perms, err := c.getPermissions(ctx, server, share)
	if err != nil {
		lookupErr := newPermissionLookupError(server, share, err)
		telemetry.EndSpan(span, lookupErr)
		return Permissions{}, lookupErr
	}

	telemetry.EndSpan(span, nil)
	return perms, nil
}

func (c *RPCClient) getPermissions(ctx context.Context, server, share string) (Permissions, error) {
	conn, err := c.conn(ctx, server)
	if err != nil {
		return Permissions{}, err
	}

	var info *rpc.ShareInfo502
	err = c.call(ctx, opShareGetInfo, func(ctx context.Context) error {
		var err error
		info, err = conn.ShareGetInfo(ctx, UNCName(server), share)
		return err
	})
	if err != nil {
		// A broken pipe is not reused for the next share.
		var se *rpc.StatusError
		if !errors.As(err, &se) {
			c.Release(server)
		}
		return Permissions{}, err
	}

	return Permissions{
		Mask:        info.Permissions,
		Path:        info.Path,
		MaxUses:     info.MaxUses,
		CurrentUses: info.CurrentUses,
	}, nil
}

// call runs fn under the per-call timeout and records its outcome.
func (c *RPCClient) call(ctx context.Context, op string, fn func(context.Context) error) error {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	c.metrics.RecordCall(op, statusLabel(err), time.Since(start))
	return err
}

// conn returns the bound connection for server, opening it on first use.
func (c *RPCClient) conn(ctx context.Context, server string) (*rpc.Conn, error) {
	key := strings.ToLower(HostName(server))
	if key == "" {
		return nil, &rpc.StatusError{Op: "connect", Status: rpc.ERROR_INVALID_NAME}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.conns[key]; ok {
		return conn, nil
	}

	pipe, err := c.opener.OpenPipe(ctx, server)
	if err != nil {
		return nil, fmt.Errorf("open srvsvc pipe: %w", err)
	}

	conn := rpc.NewConn(pipe)
	if err := conn.Bind(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("bind srvsvc: %w", err)
	}

	c.conns[key] = conn
	return conn, nil
}

// Release closes the cached connection to server, if any.
func (c *RPCClient) Release(server string) {
	key := strings.ToLower(HostName(server))

	c.mu.Lock()
	conn, ok := c.conns[key]
	delete(c.conns, key)
	c.mu.Unlock()

	if ok {
		if err := conn.Close(); err != nil {
			logger.Debug("Closing srvsvc pipe failed", logger.Server(server), logger.Err(err))
		}
	}
}

// Close closes every cached connection.
func (c *RPCClient) Close() error {
	c.mu.Lock()
	conns := c.conns
	c.conns = make(map[string]*rpc.Conn)
	c.mu.Unlock()

	var errs []error
	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
