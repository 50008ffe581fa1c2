//go:build !windows

package directory

import (
	"fmt"
	"runtime"

	"github.com/marmos91/sharescan/pkg/metrics"
)

func newNetAPIClient(*metrics.Metrics) (Client, error) {
	return nil, fmt.Errorf("%w: %s is only available on windows, not %s", ErrUnsupportedBackend, BackendNetAPI, runtime.GOOS)
}
