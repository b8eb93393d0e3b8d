package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/beltran/gohive"

	"querysource/internal/batch"
	"querysource/internal/config"
	"querysource/internal/schema"
)

// HiveBackend talks to HiveServer2 through gohive. gohive has no pool, so
// every session opens its own connection.
type HiveBackend struct{}

func (HiveBackend) Name() string {
	return "hive"
}

func (HiveBackend) Connect(_ context.Context, cfg config.Connection) (Pool, error) {
	host, port, database, err := splitTarget(cfg.ConnectString, 10000)
	if err != nil {
		return nil, err
	}
	auth := cfg.Params["auth"]
	if auth == "" {
		auth = "NONE"
	}
	return &hivePool{host: host, port: port, database: database, auth: auth, cfg: cfg}, nil
}

func (HiveBackend) CountQuery(query string) string {
	return derivedCount(query)
}

func (HiveBackend) CanaryQuery() string {
	return "SELECT 1"
}

type hivePool struct {
	host     string
	port     int
	database string
	auth     string
	cfg      config.Connection
}

func (p *hivePool) Conn(ctx context.Context) (Conn, error) {
	conf := gohive.NewConnectConfiguration()
	conf.Username = p.cfg.User
	conf.Password = p.cfg.Password

	conn, err := gohive.Connect(p.host, p.port, p.auth, conf)
	if err != nil {
		return nil, err
	}
	c := &hiveConn{conn: conn}
	if p.database != "" {
		cursor := conn.Cursor()
		cursor.Exec(ctx, "USE "+p.database)
		err := cursor.Err
		cursor.Close()
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return c, nil
}

func (p *hivePool) Close() error {
	return nil
}

type hiveConn struct {
	conn *gohive.Connection
}

func (c *hiveConn) Count(ctx context.Context, query string) (int64, error) {
	cursor := c.conn.Cursor()
	defer cursor.Close()

	cursor.Exec(ctx, query)
	if cursor.Err != nil {
		return 0, cursor.Err
	}
	var n int64
	cursor.FetchOne(ctx, &n)
	if cursor.Err != nil {
		return 0, cursor.Err
	}
	return n, nil
}

func (c *hiveConn) Query(ctx context.Context, query string) (Cursor, error) {
	cursor := c.conn.Cursor()
	cursor.Exec(ctx, query)
	if cursor.Err != nil {
		err := cursor.Err
		cursor.Close()
		return nil, err
	}
	return &hiveCursor{cursor: cursor}, nil
}

func (c *hiveConn) Close() error {
	return c.conn.Close()
}

type hiveCursor struct {
	cursor  *gohive.Cursor
	columns []schema.Native
}

func (c *hiveCursor) Shape() batch.Shape {
	return batch.Positional
}

// Columns strips the "table." qualifier hive puts on column names.
func (c *hiveCursor) Columns() ([]schema.Native, error) {
	if c.columns != nil {
		return c.columns, nil
	}
	for _, d := range c.cursor.Description() {
		if len(d) == 0 {
			continue
		}
		col := schema.Native{Name: d[0]}
		if len(d) > 1 {
			col.DatabaseType = d[1]
		}
		if _, name, ok := strings.Cut(col.Name, "."); ok {
			col.Name = name
		}
		c.columns = append(c.columns, col)
	}
	return c.columns, nil
}

func (c *hiveCursor) Fetch(ctx context.Context, n int) (batch.Raw, error) {
	desc := c.cursor.Description()
	if c.cursor.Err != nil {
		return batch.Raw{}, c.cursor.Err
	}
	out := make([][]any, 0, min(n, 1024))
	for len(out) < n && c.cursor.HasMore(ctx) {
		m := c.cursor.RowMap(ctx)
		if c.cursor.Err != nil {
			return batch.Raw{}, c.cursor.Err
		}
		if m == nil {
			return batch.Raw{}, errors.New("hive returned a row that does not match its description")
		}
		row, err := hiveRow(desc, m)
		if err != nil {
			return batch.Raw{}, err
		}
		out = append(out, row)
	}
	if c.cursor.Err != nil {
		return batch.Raw{}, c.cursor.Err
	}
	return batch.Raw{Positional: out}, nil
}

// hiveRow lays a gohive row map out in description order. gohive keys the
// map by the raw column name, so a repeated name would drop a value.
func hiveRow(desc [][]string, m map[string]any) ([]any, error) {
	if len(m) != len(desc) {
		return nil, fmt.Errorf("hive row has %d values for %d columns, column names must be unique", len(m), len(desc))
	}
	row := make([]any, len(desc))
	for i, d := range desc {
		if len(d) == 0 {
			return nil, fmt.Errorf("hive column %d has no description", i)
		}
		v, ok := m[d[0]]
		if !ok {
			return nil, fmt.Errorf("hive row is missing column %q", d[0])
		}
		var typ string
		if len(d) > 1 {
			typ = d[1]
		}
		row[i] = hiveValue(typ, v)
	}
	return row, nil
}

func hiveValue(typ string, v any) any {
	switch x := v.(type) {
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case []byte:
		return string(x)
	case string:
		return cellValue(x, typ == "DECIMAL_TYPE")
	}
	return v
}

func (c *hiveCursor) Close() error {
	c.cursor.Close()
	return c.cursor.Err
}
