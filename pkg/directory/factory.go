package directory

import (
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/sharescan/pkg/metrics"
)

// Backend names accepted by New.
const (
	BackendAuto    = "auto"
	BackendNetAPI  = "netapi"
	BackendSMB2    = "smb2"
	BackendFixture = "fixture"
)

// Options selects and configures a share directory backend.
type Options struct {
	// Backend is one of auto, netapi, smb2, fixture. Auto picks netapi on
	// Windows and smb2 elsewhere.
	Backend string

	Port        int
	Username    string
	Password    string
	Domain      string
	DialTimeout time.Duration
	CallTimeout time.Duration

	// PageSize is the preferred maximum length of one enumeration page.
	PageSize uint32

	// FixturePath is the YAML file read by the fixture backend.
	FixturePath string

	Metrics *metrics.Metrics
}

// ResolveBackend maps auto and the empty string to the platform default.
func ResolveBackend(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == BackendAuto {
		return defaultBackend
	}
	return name
}

// New builds the Client for opts.Backend.
func New(opts Options) (Client, error) {
	switch backend := ResolveBackend(opts.Backend); backend {
	case BackendNetAPI:
		return newNetAPIClient(opts.Metrics)

	case BackendSMB2:
		opener := &SMB2Opener{
			Port:        opts.Port,
			User:        opts.Username,
			Password:    opts.Password,
			Domain:      opts.Domain,
			DialTimeout: opts.DialTimeout,
		}
		return newRPCClient(opener, opts), nil

	case BackendFixture:
		if opts.FixturePath == "" {
			return nil, fmt.Errorf("fixture backend requires a fixture path")
		}
		fixture, err := LoadFixture(opts.FixturePath)
		if err != nil {
			return nil, err
		}
		return newRPCClient(&FixtureOpener{Fixture: fixture}, opts), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, backend)
	}
}

func newRPCClient(opener PipeOpener, opts Options) *RPCClient {
	return NewRPCClient(opener,
		WithPageSize(opts.PageSize),
		WithCallTimeout(opts.CallTimeout),
		WithMetrics(opts.Metrics),
	)
}
