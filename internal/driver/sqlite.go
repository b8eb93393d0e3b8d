package driver

import (
	"context"
	"net/url"

	_ "modernc.org/sqlite"

	"querysource/internal/config"
)

// SQLiteBackend opens a local database file through modernc.org/sqlite.
type SQLiteBackend struct{}

func (SQLiteBackend) Name() string {
	return "sqlite"
}

func (SQLiteBackend) Connect(_ context.Context, cfg config.Connection) (Pool, error) {
	dsn := cfg.ConnectString
	if len(cfg.Params) > 0 {
		q := url.Values{}
		for k, v := range cfg.Params {
			q.Add(k, v)
		}
		dsn += "?" + q.Encode()
	}
	return openSQL("sqlite", dsn)
}

func (SQLiteBackend) CountQuery(query string) string {
	return derivedCount(query)
}

func (SQLiteBackend) CanaryQuery() string {
	return "SELECT 1"
}
