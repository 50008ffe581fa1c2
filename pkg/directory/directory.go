// Package directory lists the shares a server exports and looks up the
// permissions configured on each of them.
//
// Every backend speaks the Server Service (MS-SRVS): the Windows NetAPI, a
// DCE/RPC client over the srvsvc named pipe reached through an SMB2 session,
// or an offline fixture served by the in-memory srvsvc handler.
package directory

import (
	"context"
	"strings"
)

// Share is one entry returned by share enumeration (SHARE_INFO_1).
type Share struct {
	Name    string
	Type    uint32
	Comment string
}

// Share permission bits (lmaccess.h ACCESS_*).
const (
	AccessRead   uint32 = 0x01
	AccessWrite  uint32 = 0x02
	AccessCreate uint32 = 0x04
	AccessExec   uint32 = 0x08
	AccessDelete uint32 = 0x10
	AccessAtrib  uint32 = 0x20
	AccessPerm   uint32 = 0x40
	AccessAll    uint32 = 0x7F
)

// Permissions is the level-502 information of one share.
type Permissions struct {
	Mask        uint32
	Path        string
	MaxUses     uint32
	CurrentUses uint32
}

// GrantsAll reports whether every ACCESS_ALL bit is granted. Older share
// auditors tested for any ACCESS_ALL bit, which labels every readable share
// "open to all"; here a partial mask falls through to Write or Read.
func (p Permissions) GrantsAll() bool {
	return p.Mask&AccessAll == AccessAll
}

// GrantsWrite reports whether ACCESS_WRITE is granted.
func (p Permissions) GrantsWrite() bool {
	return p.Mask&AccessWrite != 0
}

// Client is the share directory of remote servers.
//
// ListShares fails with *EnumerationError and GetPermissions with
// *PermissionLookupError. Implementations are used from one goroutine at a
// time.
type Client interface {
	ListShares(ctx context.Context, server string) ([]Share, error)
	GetPermissions(ctx context.Context, server, share string) (Permissions, error)
	Close() error
}

// Releaser is implemented by clients that cache per-server connections.
type Releaser interface {
	Release(server string)
}

// HostName strips UNC prefixes and surrounding whitespace from a server
// identifier so it can be dialed.
func HostName(server string) string {
	s := strings.TrimSpace(server)
	s = strings.TrimLeft(s, `\/`)
	if i := strings.IndexAny(s, `\/`); i >= 0 {
		s = s[:i]
	}
	return s
}

// UNCName returns the server in the \\host form expected by SRVSVC.
func UNCName(server string) string {
	return `\\` + HostName(server)
}
