package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"querysource/internal/config"
	"querysource/internal/errs"
)

var ErrUnknownBackend = errors.New("unknown backend")

// Manager owns the process-wide pools, one per connection identity, and
// acquires sessions from them. Pools are created on first use and live until
// Close; concurrent first calls for the same identity create a single pool.
type Manager struct {
	backends map[string]Backend

	mu    sync.Mutex
	pools map[string]Pool
	group singleflight.Group
}

// NewManager registers the given backends by name.
func NewManager(backends ...Backend) *Manager {
	m := &Manager{
		backends: make(map[string]Backend, len(backends)),
		pools:    make(map[string]Pool),
	}
	for _, b := range backends {
		m.backends[b.Name()] = b
	}
	return m
}

// DefaultBackends returns every built-in backend.
func DefaultBackends() []Backend {
	return []Backend{
		OracleBackend{},
		PostgresBackend{},
		PgxBackend{},
		MySQLBackend{},
		SQLiteBackend{},
		HiveBackend{},
	}
}

// Backend looks up a registered backend.
func (m *Manager) Backend(name string) (Backend, error) {
	b, ok := m.backends[name]
	if !ok {
		return nil, &errs.ConfigurationError{Field: "backend", Cause: fmt.Errorf("%w: %q", ErrUnknownBackend, name)}
	}
	return b, nil
}

// Acquire returns a session on a connection from the pool for cfg.
func (m *Manager) Acquire(ctx context.Context, cfg config.Connection) (*Session, error) {
	b, err := m.Backend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	p, err := m.pool(ctx, b, cfg)
	if err != nil {
		return nil, &errs.ConnectionError{Backend: b.Name(), Cause: err}
	}

	conn, err := p.Conn(ctx)
	if err != nil {
		return nil, &errs.ConnectionError{Backend: b.Name(), Cause: err}
	}
	return &Session{conn: conn, backend: b}, nil
}

func (m *Manager) pool(ctx context.Context, b Backend, cfg config.Connection) (Pool, error) {
	key := cfg.Identity()
	if p, ok := m.lookup(key); ok {
		return p, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		if p, ok := m.lookup(key); ok {
			return p, nil
		}
		p, err := b.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.pools[key] = p
		m.mu.Unlock()
		slog.Info("Pool created", "backend", b.Name())
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Pool), nil
}

func (m *Manager) lookup(key string) (Pool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[key]
	return p, ok
}

// Close closes every pool. It is meant for process shutdown.
func (m *Manager) Close() error {
	m.mu.Lock()
	pools := m.pools
	m.pools = make(map[string]Pool)
	m.mu.Unlock()

	var errList []error
	for _, p := range pools {
		if err := p.Close(); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// Session is a connection exclusively owned by one query execution.
type Session struct {
	conn    Conn
	backend Backend

	once sync.Once
	err  error
}

// Backend returns the backend the session belongs to.
func (s *Session) Backend() Backend {
	return s.backend
}

// Count runs the backend's COUNT(*) wrapper around query.
func (s *Session) Count(ctx context.Context, query string) (int64, error) {
	return s.conn.Count(ctx, s.backend.CountQuery(query))
}

// Query opens a cursor over query.
func (s *Session) Query(ctx context.Context, query string) (Cursor, error) {
	return s.conn.Query(ctx, query)
}

// Release closes the connection. Only the first call closes; later calls
// return the same result. A close failure is logged and returned as an
// *errs.CleanupError.
func (s *Session) Release() error {
	s.once.Do(func() {
		if err := s.conn.Close(); err != nil {
			slog.Error("Session close failed", "backend", s.backend.Name(), "error", err)
			s.err = &errs.CleanupError{Resource: "session", Cause: err}
		}
	})
	return s.err
}
