package postgres

import (
	"context"
	"fmt"
	"time"
)

// HealthStatus is the Postgres section of the agent's /health report
type HealthStatus struct {
	Connected     bool      `json:"connected"`
	ServerVersion string    `json:"server_version,omitempty"`
	Database      string    `json:"database"`
	LatencyMs     int64     `json:"latency_ms"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// HealthCheck pings the pool and reads the server version. Failures are
// reported in the status; the error return is reserved for callers that
// wrap the client.
func (c *PostgresClient) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := HealthStatus{
		Timestamp: time.Now(),
	}
	if c.config != nil {
		status.Database = c.config.PostgresDB
	}

	if c.db == nil {
		status.Connected = false
		status.Error = "not connected"
		return &status, nil
	}

	start := time.Now()
	if err := c.db.PingContext(ctx); err != nil {
		status.Connected = false
		status.Error = fmt.Sprintf("ping failed: %v", err)
		return &status, nil
	}
	status.LatencyMs = time.Since(start).Milliseconds()

	var version string
	err := c.db.QueryRowContext(ctx, "SELECT version()").Scan(&version)
	if err != nil {
		status.Connected = true
		status.Error = fmt.Sprintf("failed to get version: %v", err)
		return &status, nil
	}

	status.Connected = true
	status.ServerVersion = version

	return &status, nil
}
