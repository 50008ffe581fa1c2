//go:build windows

package directory

import (
	"context"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/marmos91/sharescan/internal/protocol/smb/rpc"
	"github.com/marmos91/sharescan/internal/telemetry"
	"github.com/marmos91/sharescan/pkg/metrics"
)

var (
	modnetapi32         = windows.NewLazySystemDLL("netapi32.dll")
	procNetShareEnum    = modnetapi32.NewProc("NetShareEnum")
	procNetShareGetInfo = modnetapi32.NewProc("NetShareGetInfo")
)

// shareInfo1 mirrors SHARE_INFO_1.
type shareInfo1 struct {
	netname *uint16
	typ     uint32
	remark  *uint16
}

// shareInfo502 mirrors SHARE_INFO_502.
type shareInfo502 struct {
	netname            *uint16
	typ                uint32
	remark             *uint16
	permissions        uint32
	maxUses            uint32
	currentUses        uint32
	path               *uint16
	passwd             *uint16
	reserved           uint32
	securityDescriptor uintptr
}

// NetAPIClient implements Client with the NetShareEnum and NetShareGetInfo
// calls of netapi32.dll, authenticating as the calling user.
type NetAPIClient struct {
	metrics *metrics.Metrics
}

func newNetAPIClient(m *metrics.Metrics) (Client, error) {
	if err := procNetShareEnum.Find(); err != nil {
		return nil, err
	}
	return &NetAPIClient{metrics: m}, nil
}

func (c *NetAPIClient) ListShares(ctx context.Context, server string) ([]Share, error) {
	ctx, span := telemetry.StartDirectorySpan(ctx, telemetry.SpanListShares, server, telemetry.Backend(BackendNetAPI))

	shares, err := c.listShares(ctx, server)
	if err != nil {
		enumErr := newEnumerationError(server, err)
		telemetry.EndSpan(span, enumErr)
		return nil, enumErr
	}
	telemetry.EndSpan(span, nil)
	return shares, nil
}

func (c *NetAPIClient) listShares(ctx context.Context, server string) ([]Share, error) {
	name, err := windows.UTF16PtrFromString(UNCName(server))
	if err != nil {
		return nil, err
	}

	var (
		out    []Share
		resume uint32
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			buf         *byte
			read, total uint32
		)
		start := time.Now()
		r, _, _ := procNetShareEnum.Call(
			uintptr(unsafe.Pointer(name)),
			1,
			uintptr(unsafe.Pointer(&buf)),
			uintptr(rpc.MaxPreferredLength),
			uintptr(unsafe.Pointer(&read)),
			uintptr(unsafe.Pointer(&total)),
			uintptr(unsafe.Pointer(&resume)),
		)
		status := uint32(r)
		c.metrics.RecordCall(opShareEnum, rpc.StatusText(status), time.Since(start))

		if buf != nil {
			for _, e := range unsafe.Slice((*shareInfo1)(unsafe.Pointer(buf)), read) {
				out = append(out, Share{
					Name:    windows.UTF16PtrToString(e.netname),
					Type:    e.typ,
					Comment: windows.UTF16PtrToString(e.remark),
				})
			}
			_ = windows.NetApiBufferFree(buf)
		}

		switch status {
		case rpc.NERR_Success:
			return out, nil
		case rpc.ERROR_MORE_DATA:
			continue
		default:
			return nil, &rpc.StatusError{Op: "NetShareEnum", Status: status}
		}
	}
}

func (c *NetAPIClient) GetPermissions(ctx context.Context, server, share string) (Permissions, error) {
	_, span := telemetry.StartDirectorySpan(ctx, telemetry.SpanGetPermissions, server,
		telemetry.Share(share), telemetry.Backend(BackendNetAPI))

	perms, err := c.getPermissions(server, share)
	if err != nil {
		lookupErr := newPermissionLookupError(server, share, err)
		telemetry.EndSpan(span, lookupErr)
		return Permissions{}, lookupErr
	}
	telemetry.EndSpan(span, nil)
	return perms, nil
}

func (c *NetAPIClient) getPermissions(server, share string) (Permissions, error) {
	serverName, err := windows.UTF16PtrFromString(UNCName(server))
	if err != nil {
		return Permissions{}, err
	}
	netName, err := windows.UTF16PtrFromString(share)
	if err != nil {
		return Permissions{}, err
	}

	var buf *byte
	start := time.Now()
	r, _, _ := procNetShareGetInfo.Call(
		uintptr(unsafe.Pointer(serverName)),
		uintptr(unsafe.Pointer(netName)),
		502,
		uintptr(unsafe.Pointer(&buf)),
	)
	status := uint32(r)
	c.metrics.RecordCall(opShareGetInfo, rpc.StatusText(status), time.Since(start))

	if status != rpc.NERR_Success {
		if buf != nil {
			_ = windows.NetApiBufferFree(buf)
		}
		return Permissions{}, &rpc.StatusError{Op: "NetShareGetInfo", Status: status}
	}
	defer windows.NetApiBufferFree(buf)

	info := (*shareInfo502)(unsafe.Pointer(buf))
	return Permissions{
		Mask:        info.permissions,
		Path:        windows.UTF16PtrToString(info.path),
		MaxUses:     info.maxUses,
		CurrentUses: info.currentUses,
	}, nil
}

// Close is a no-op; netapi32 manages its own sessions.
func (c *NetAPIClient) Close() error {
	return nil
}
