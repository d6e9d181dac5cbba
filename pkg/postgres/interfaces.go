package postgres

import (
	"context"
	"database/sql"
)

// Client is the part of a Postgres connection the transition log and the
// health checker use
type Client interface {
	// Connect opens the pool and pings the server
	Connect(ctx context.Context) error

	// Disconnect closes the pool. Safe to call when never connected.
	Disconnect() error

	// Exec runs a statement that returns no rows
	Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

	// Query runs a statement that returns rows
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)

	// Transaction runs fn in a transaction and commits when it returns nil
	Transaction(ctx context.Context, fn func(*sql.Tx) error) error

	// HealthCheck reports connectivity, latency and server version
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}
