// Package drivertest provides an in-memory driver.Backend whose behavior and
// failures are scripted by tests.
package drivertest

import (
	"context"
	"strings"
	"sync"

	"querysource/internal/batch"
	"querysource/internal/config"
	"querysource/internal/driver"
	"querysource/internal/schema"
)

// Event names recorded by Backend.
const (
	EventConnect     = "connect"
	EventConn        = "conn"
	EventCount       = "count"
	EventQuery       = "query"
	EventFetch       = "fetch"
	EventCursorClose = "cursor.close"
	EventConnClose   = "conn.close"
)

// Backend serves a fixed result. The zero value serves an empty result with
// no columns under the name "fake".
type Backend struct {
	BackendName string
	Columns     []schema.Native
	Rows        [][]any
	// Keyed makes cursors return keyed rows using the upper-cased column names.
	Keyed bool
	// RowCount overrides the count returned by the COUNT query; -1 means len(Rows).
	RowCount int64

	ConnectErr     error
	ConnErr        error
	CountErr       error
	QueryErr       error
	FetchErr       error
	FailFetchAt    int // zero-based fetch call that returns FetchErr
	CursorCloseErr error
	ConnCloseErr   error

	// QueryHook, when set, runs at the start of every Conn.Query call.
	QueryHook func()

	mu      sync.Mutex
	events  []string
	queries []string
}

// New returns a Backend serving rows for cols.
func New(cols []schema.Native, rows [][]any) *Backend {
	return &Backend{Columns: cols, Rows: rows, RowCount: -1}
}

var _ driver.Backend = (*Backend)(nil)

func (b *Backend) Name() string {
	if b.BackendName == "" {
		return "fake"
	}
	return b.BackendName
}

func (b *Backend) Connect(context.Context, config.Connection) (driver.Pool, error) {
	b.record(EventConnect, "")
	if b.ConnectErr != nil {
		return nil, b.ConnectErr
	}
	return &pool{b: b}, nil
}

func (b *Backend) CountQuery(query string) string {
	return "COUNT(" + query + ")"
}

func (b *Backend) CanaryQuery() string {
	return "SELECT 1"
}

// Events returns the recorded events in order.
func (b *Backend) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

// Queries returns the text of every count and main query, in order.
func (b *Backend) Queries() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.queries...)
}

// Occurrences counts how many times event was recorded.
func (b *Backend) Occurrences(event string) int {
	n := 0
	for _, e := range b.Events() {
		if e == event {
			n++
		}
	}
	return n
}

// OpenConns is the number of connections handed out and not closed.
func (b *Backend) OpenConns() int {
	return b.Occurrences(EventConn) - b.Occurrences(EventConnClose)
}

func (b *Backend) record(event, query string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	if query != "" {
		b.queries = append(b.queries, query)
	}
}

type pool struct {
	b *Backend
}

func (p *pool) Conn(context.Context) (driver.Conn, error) {
	if p.b.ConnErr != nil {
		return nil, p.b.ConnErr
	}
	p.b.record(EventConn, "")
	return &conn{b: p.b}, nil
}

func (p *pool) Close() error {
	return nil
}

type conn struct {
	b *Backend
}

func (c *conn) Count(_ context.Context, query string) (int64, error) {
	c.b.record(EventCount, query)
	if c.b.CountErr != nil {
		return 0, c.b.CountErr
	}
	if c.b.RowCount >= 0 {
		return c.b.RowCount, nil
	}
	return int64(len(c.b.Rows)), nil
}

func (c *conn) Query(_ context.Context, query string) (driver.Cursor, error) {
	if c.b.QueryHook != nil {
		c.b.QueryHook()
	}
	c.b.record(EventQuery, query)
	if c.b.QueryErr != nil {
		return nil, c.b.QueryErr
	}
	return &cursor{b: c.b}, nil
}

func (c *conn) Close() error {
	c.b.record(EventConnClose, "")
	return c.b.ConnCloseErr
}

type cursor struct {
	b       *Backend
	pos     int
	fetches int
}

func (c *cursor) Shape() batch.Shape {
	if c.b.Keyed {
		return batch.Keyed
	}
	return batch.Positional
}

func (c *cursor) Columns() ([]schema.Native, error) {
	return c.b.Columns, nil
}

func (c *cursor) Fetch(_ context.Context, n int) (batch.Raw, error) {
	c.b.record(EventFetch, "")
	call := c.fetches
	c.fetches++
	if c.b.FetchErr != nil && call == c.b.FailFetchAt {
		return batch.Raw{}, c.b.FetchErr
	}

	end := min(c.pos+n, len(c.b.Rows))
	rows := c.b.Rows[c.pos:end]
	c.pos = end

	if !c.b.Keyed {
		return batch.Raw{Positional: rows}, nil
	}
	keyed := make([]map[string]any, len(rows))
	for i, values := range rows {
		m := make(map[string]any, len(values))
		for j, v := range values {
			m[strings.ToUpper(c.b.Columns[j].Name)] = v
		}
		keyed[i] = m
	}
	return batch.Raw{Keyed: keyed}, nil
}

func (c *cursor) Close() error {
	c.b.record(EventCursorClose, "")
	return c.b.CursorCloseErr
}
