package export

import "fmt"

// ExportError reports a report that could not be written to Destination.
type ExportError struct {
	Destination string
	Err         error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export to %s: %v", e.Destination, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
