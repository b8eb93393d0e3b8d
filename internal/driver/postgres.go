package driver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/lib/pq"

	"querysource/internal/config"
)

// PostgresBackend runs queries through lib/pq.
type PostgresBackend struct{}

func (PostgresBackend) Name() string {
	return "postgres"
}

func (PostgresBackend) Connect(_ context.Context, cfg config.Connection) (Pool, error) {
	dsn, err := postgresURL(cfg)
	if err != nil {
		return nil, err
	}
	return openSQL("postgres", dsn)
}

func (PostgresBackend) CountQuery(query string) string {
	return derivedCount(query)
}

func (PostgresBackend) CanaryQuery() string {
	return "SELECT 1"
}

// postgresURL accepts either a full postgres:// URL or a "host:port/dbname"
// target and merges in credentials and params.
func postgresURL(cfg config.Connection) (string, error) {
	var u *url.URL
	if strings.Contains(cfg.ConnectString, "://") {
		parsed, err := url.Parse(cfg.ConnectString)
		if err != nil {
			return "", fmt.Errorf("invalid connect string: %w", err)
		}
		u = parsed
	} else {
		host, db, _ := strings.Cut(cfg.ConnectString, "/")
		u = &url.URL{Scheme: "postgres", Host: host, Path: "/" + db}
	}

	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}

	q := u.Query()
	for k, v := range cfg.Params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
