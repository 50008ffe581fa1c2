package directory

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marmos91/sharescan/internal/protocol/smb/rpc"
)

// Fixture describes servers and their shares for offline scans.
//
//	servers:
//	  - name: FILESRV
//	    shares:
//	      - name: Public
//	        type: disk
//	        permissions: 0x7F
//	      - name: ADMIN$
//	        type: disk
//	        special: true
//	        info_status: 5
type Fixture struct {
	Servers []FixtureServer `yaml:"servers"`
}

// FixtureServer is one server of a Fixture.
type FixtureServer struct {
	Name string `yaml:"name"`

	// EnumStatus makes share enumeration fail with this Win32 status.
	EnumStatus uint32 `yaml:"enum_status,omitempty"`

	// PageSize splits enumeration into pages of this many shares.
	PageSize int `yaml:"page_size,omitempty"`

	Shares []FixtureShare `yaml:"shares"`
}

// FixtureShare is one share of a FixtureServer.
type FixtureShare struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type,omitempty"` // disk, printq, device, ipc
	Special     bool   `yaml:"special,omitempty"`
	Temporary   bool   `yaml:"temporary,omitempty"`
	Comment     string `yaml:"comment,omitempty"`
	Permissions uint32 `yaml:"permissions,omitempty"`
	Path        string `yaml:"path,omitempty"`
	MaxUses     uint32 `yaml:"max_uses,omitempty"`
	CurrentUses uint32 `yaml:"current_uses,omitempty"`

	// InfoStatus makes the permission lookup fail with this Win32 status.
	InfoStatus uint32 `yaml:"info_status,omitempty"`
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes and checks a YAML fixture.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}

	for i, srv := range f.Servers {
		if HostName(srv.Name) == "" {
			return nil, fmt.Errorf("fixture server %d has no name", i)
		}
		for _, sh := range srv.Shares {
			if _, err := shareTypeCode(sh.Type); err != nil {
				return nil, fmt.Errorf("fixture share %s on %s: %w", sh.Name, srv.Name, err)
			}
		}
	}
	return &f, nil
}

// Server returns the fixture entry for server, matched case-insensitively
// on the host name.
func (f *Fixture) Server(server string) (*FixtureServer, bool) {
	host := HostName(server)
	for i := range f.Servers {
		if strings.EqualFold(HostName(f.Servers[i].Name), host) {
			return &f.Servers[i], true
		}
	}
	return nil, false
}

func shareTypeCode(name string) (uint32, error) {
	switch strings.ToLower(name) {
	case "", "disk":
		return rpc.STYPE_DISKTREE, nil
	case "printq", "print":
		return rpc.STYPE_PRINTQ, nil
	case "device":
		return rpc.STYPE_DEVICE, nil
	case "ipc":
		return rpc.STYPE_IPC, nil
	default:
		return 0, fmt.Errorf("unknown share type %q", name)
	}
}

func (s FixtureShare) serverShare() rpc.ServerShare {
	code, _ := shareTypeCode(s.Type)
	if s.Special {
		code |= rpc.STYPE_SPECIAL
	}
	if s.Temporary {
		code |= rpc.STYPE_TEMPORARY
	}
	return rpc.ServerShare{
		ShareInfo502: rpc.ShareInfo502{
			Name:        s.Name,
			Type:        code,
			Comment:     s.Comment,
			Permissions: s.Permissions,
			MaxUses:     s.MaxUses,
			CurrentUses: s.CurrentUses,
			Path:        s.Path,
		},
		InfoStatus: s.InfoStatus,
	}
}

// FixtureOpener serves fixture servers through in-memory srvsvc pipes, so
// fixture scans exercise the same RPC client as live ones.
type FixtureOpener struct {
	Fixture *Fixture
}

// OpenPipe returns a pipe to the fixture server. Unknown servers fail like
// an unreachable host.
func (o *FixtureOpener) OpenPipe(ctx context.Context, server string) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	srv, ok := o.Fixture.Server(server)
	if !ok {
		return nil, &rpc.StatusError{Op: "connect", Status: rpc.ERROR_BAD_NETPATH}
	}

	shares := make([]rpc.ServerShare, 0, len(srv.Shares))
	for _, s := range srv.Shares {
		shares = append(shares, s.serverShare())
	}

	opts := []rpc.HandlerOption{rpc.WithPageSize(srv.PageSize)}
	if srv.EnumStatus != rpc.NERR_Success {
		opts = append(opts, rpc.WithEnumStatus(srv.EnumStatus))
	}
	return rpc.NewPipe(rpc.NewHandler(shares, opts...)), nil
}
