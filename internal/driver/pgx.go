package driver

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"querysource/internal/batch"
	"querysource/internal/config"
	"querysource/internal/schema"
)

// PgxBackend talks to PostgreSQL through a native pgx pool and produces
// keyed rows.
type PgxBackend struct{}

func (PgxBackend) Name() string {
	return "pgx"
}

func (PgxBackend) Connect(ctx context.Context, cfg config.Connection) (Pool, error) {
	dsn, err := postgresURL(cfg)
	if err != nil {
		return nil, err
	}
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &pgxPool{pool: pool}, nil
}

func (PgxBackend) CountQuery(query string) string {
	return derivedCount(query)
}

func (PgxBackend) CanaryQuery() string {
	return "SELECT 1"
}

type pgxPool struct {
	pool *pgxpool.Pool
}

func (p *pgxPool) Conn(ctx context.Context) (Conn, error) {
	c, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxConn{conn: c}, nil
}

func (p *pgxPool) Close() error {
	p.pool.Close()
	return nil
}

type pgxConn struct {
	conn *pgxpool.Conn
}

func (c *pgxConn) Count(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := c.conn.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *pgxConn) Query(ctx context.Context, query string) (Cursor, error) {
	rows, err := c.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return &pgxCursor{rows: rows, typeMap: c.conn.Conn().TypeMap()}, nil
}

func (c *pgxConn) Close() error {
	c.conn.Release()
	return nil
}

type pgxCursor struct {
	rows    pgx.Rows
	typeMap *pgtype.Map
}

func (c *pgxCursor) Shape() batch.Shape {
	return batch.Keyed
}

func (c *pgxCursor) Columns() ([]schema.Native, error) {
	fields := c.rows.FieldDescriptions()
	cols := make([]schema.Native, len(fields))
	for i, f := range fields {
		cols[i].Name = f.Name
		if t, ok := c.typeMap.TypeForOID(f.DataTypeOID); ok {
			cols[i].DatabaseType = t.Name
		}
	}
	return cols, nil
}

func (c *pgxCursor) Fetch(ctx context.Context, n int) (batch.Raw, error) {
	out := make([]map[string]any, 0, min(n, 1024))
	for len(out) < n && c.rows.Next() {
		if err := ctx.Err(); err != nil {
			return batch.Raw{}, err
		}
		row, err := pgx.RowToMap(c.rows)
		if err != nil {
			return batch.Raw{}, fmt.Errorf("read row: %w", err)
		}
		for k, v := range row {
			if num, ok := v.(pgtype.Numeric); ok {
				row[k] = numericValue(num)
			}
		}
		out = append(out, row)
	}
	if err := c.rows.Err(); err != nil {
		return batch.Raw{}, err
	}
	return batch.Raw{Keyed: out}, nil
}

func (c *pgxCursor) Close() error {
	c.rows.Close()
	return nil
}

func numericValue(n pgtype.Numeric) any {
	if !n.Valid {
		return nil
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return n
	}
	return f.Float64
}
