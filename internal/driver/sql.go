package driver

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"querysource/internal/batch"
	"querysource/internal/schema"
)

// sqlPool adapts a database/sql pool. Every backend registered with
// database/sql shares it.
type sqlPool struct {
	db *sql.DB
}

func openSQL(driverName, dsn string) (*sqlPool, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &sqlPool{db: db}, nil
}

func (p *sqlPool) Conn(ctx context.Context) (Conn, error) {
	c, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &sqlConn{conn: c}, nil
}

func (p *sqlPool) Close() error {
	return p.db.Close()
}

type sqlConn struct {
	conn *sql.Conn
}

func (c *sqlConn) Count(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := c.conn.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *sqlConn) Query(ctx context.Context, query string) (Cursor, error) {
	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &sqlCursor{rows: rows}, nil
}

func (c *sqlConn) Close() error {
	return c.conn.Close()
}

// sqlCursor reads a *sql.Rows in positional batches.
type sqlCursor struct {
	rows    *sql.Rows
	columns []schema.Native
	numeric []bool
}

func (c *sqlCursor) Shape() batch.Shape {
	return batch.Positional
}

func (c *sqlCursor) Columns() ([]schema.Native, error) {
	if c.columns != nil {
		return c.columns, nil
	}
	types, err := c.rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	c.columns = make([]schema.Native, len(types))
	c.numeric = make([]bool, len(types))
	for i, ct := range types {
		c.columns[i] = schema.Native{Name: ct.Name(), DatabaseType: ct.DatabaseTypeName()}
		t, _ := schema.MapType(ct.DatabaseTypeName())
		c.numeric[i] = t == schema.Number
	}
	return c.columns, nil
}

func (c *sqlCursor) Fetch(ctx context.Context, n int) (batch.Raw, error) {
	cols, err := c.Columns()
	if err != nil {
		return batch.Raw{}, err
	}

	out := make([][]any, 0, min(n, 1024))
	for len(out) < n && c.rows.Next() {
		if err := ctx.Err(); err != nil {
			return batch.Raw{}, err
		}
		values := make([]any, len(cols))
		scanArgs := make([]any, len(cols))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := c.rows.Scan(scanArgs...); err != nil {
			return batch.Raw{}, fmt.Errorf("row scan failed: %w", err)
		}
		for i, v := range values {
			values[i] = cellValue(v, c.numeric[i])
		}
		out = append(out, values)
	}
	if err := c.rows.Err(); err != nil {
		return batch.Raw{}, err
	}
	return batch.Raw{Positional: out}, nil
}

func (c *sqlCursor) Close() error {
	return c.rows.Close()
}

// cellValue turns driver byte slices into strings, and numeric text into
// int64 or float64 when the column is numeric.
func cellValue(v any, numeric bool) any {
	s, ok := v.(string)
	if b, isBytes := v.([]byte); isBytes {
		s, ok = string(b), true
	}
	if !ok {
		return v
	}
	if numeric {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}
