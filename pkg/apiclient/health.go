package apiclient

import (
	"context"
	"time"
)

// Health is the body of GET /health.
type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      struct {
		Service   string    `json:"service"`
		Version   string    `json:"version"`
		StartedAt time.Time `json:"started_at"`
		Uptime    string    `json:"uptime"`
	} `json:"data"`
}

// Health queries the unauthenticated liveness probe.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	return getResource[Health](ctx, c, "/health")
}
