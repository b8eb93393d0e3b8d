package driver

import (
	"context"

	"querysource/internal/batch"
	"querysource/internal/config"
	"querysource/internal/schema"
)

// Backend adapts one family of databases to the connector.
type Backend interface {
	// Name returns the backend name used in configuration (e.g., "oracle", "postgres").
	Name() string

	// Connect creates the pool shared by every session opened for cfg.
	Connect(ctx context.Context, cfg config.Connection) (Pool, error)

	// CountQuery wraps query as a named subquery selecting COUNT(*).
	CountQuery(query string) string

	// CanaryQuery returns a trivial side-effect-free query for connectivity checks.
	CanaryQuery() string
}

// Pool hands out connections. Implementations must be safe for concurrent use.
type Pool interface {
	Conn(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is a single connection owned by one query execution.
type Conn interface {
	// Count runs a counting query and returns its single value.
	Count(ctx context.Context, query string) (int64, error)

	// Query executes query in streaming mode and returns a cursor over its result.
	Query(ctx context.Context, query string) (Cursor, error)

	// Close returns the connection to its pool.
	Close() error
}

// Cursor is a server-side position into a result.
type Cursor interface {
	// Shape is the native row layout returned by Fetch.
	Shape() batch.Shape

	// Columns describes the result columns. Reliable after the first Fetch.
	Columns() ([]schema.Native, error)

	// Fetch returns up to n rows. Fewer than n rows means the result is exhausted.
	Fetch(ctx context.Context, n int) (batch.Raw, error)

	// Close closes the cursor and frees resources.
	Close() error
}

func derivedCount(query string) string {
	return "SELECT COUNT(*) AS rrows FROM (\n" + query + "\n) root"
}

func cteCount(query string) string {
	return "WITH root AS (\n" + query + "\n) SELECT COUNT(*) AS rrows FROM root"
}
