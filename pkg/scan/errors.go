package scan

import (
	"errors"
	"fmt"
)

// ErrAlreadyRunning is matched by the error Start returns while a scan is
// in flight.
var ErrAlreadyRunning = errors.New("a scan is already running")

// AlreadyRunningError identifies the scan that blocked a Start.
type AlreadyRunningError struct {
	ScanID string
	Server string
}

func (e *AlreadyRunningError) Error() string {
	if e.ScanID == "" {
		return ErrAlreadyRunning.Error()
	}
	return fmt.Sprintf("%s: scan %s of %s", ErrAlreadyRunning, e.ScanID, e.Server)
}

func (e *AlreadyRunningError) Unwrap() error {
	return ErrAlreadyRunning
}

// InvalidInputError reports a rejected Start argument.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
