package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "5m 3s", FormatDuration(5*time.Minute+3*time.Second))
	assert.Equal(t, "2h 0m 7s", FormatDuration(2*time.Hour+7*time.Second))
	assert.Equal(t, "3d 0h 30m 15s", FormatDuration(72*time.Hour+30*time.Minute+15*time.Second))
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "1h 1m 1s", FormatUptime("1h1m1s"))
	assert.Equal(t, "soon", FormatUptime("soon"))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", FormatTime(time.Time{}))

	ts := time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC)
	assert.Equal(t, ts.Local().Format(LocalTimeFormat), FormatTime(ts))
}
