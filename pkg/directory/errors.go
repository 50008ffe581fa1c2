package directory

import (
	"errors"
	"fmt"

	"github.com/marmos91/sharescan/internal/protocol/smb/rpc"
)

// ErrUnsupportedBackend is returned by New for a backend that cannot run on
// this platform or is unknown.
var ErrUnsupportedBackend = errors.New("unsupported share directory backend")

// EnumerationError reports that the shares of a server could not be listed.
// Status holds the Win32 status when the server returned one.
type EnumerationError struct {
	Server string
	Status uint32
	Err    error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumerate shares on %s: %v", e.Server, e.Err)
}

func (e *EnumerationError) Unwrap() error {
	return e.Err
}

// PermissionLookupError reports that the information of one share could not
// be retrieved.
type PermissionLookupError struct {
	Server string
	Share  string
	Status uint32
	Err    error
}

func (e *PermissionLookupError) Error() string {
	return fmt.Sprintf("get permissions of %s on %s: %v", e.Share, e.Server, e.Err)
}

func (e *PermissionLookupError) Unwrap() error {
	return e.Err
}

func newEnumerationError(server string, err error) *EnumerationError {
	var ee *EnumerationError
	if errors.As(err, &ee) {
		return ee
	}
	return &EnumerationError{Server: server, Status: statusOf(err), Err: err}
}

func newPermissionLookupError(server, share string, err error) *PermissionLookupError {
	var pe *PermissionLookupError
	if errors.As(err, &pe) {
		return pe
	}
	return &PermissionLookupError{Server: server, Share: share, Status: statusOf(err), Err: err}
}

func statusOf(err error) uint32 {
	var se *rpc.StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	var fe *rpc.FaultError
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}

// statusLabel names the outcome of a call for metrics.
func statusLabel(err error) string {
	if err == nil {
		return rpc.StatusText(rpc.NERR_Success)
	}
	if status := statusOf(err); status != 0 {
		return rpc.StatusText(status)
	}
	return "transport_error"
}
