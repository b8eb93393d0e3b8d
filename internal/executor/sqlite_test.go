package executor_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querysource/internal/config"
	"querysource/internal/driver"
	"querysource/internal/executor"
	"querysource/internal/schema"
)

func sqliteExecutor(t *testing.T) (*executor.Executor, config.Connection, string) {
	t.Helper()
	m := driver.NewManager(driver.SQLiteBackend{})
	t.Cleanup(func() { _ = m.Close() })
	path := filepath.Join(t.TempDir(), "reports.db")
	return executor.New(m), config.Connection{Backend: "sqlite", ConnectString: path}, path
}

func TestSQLite_UnionBatches(t *testing.T) {
	ex, cfg, _ := sqliteExecutor(t)
	query := `
		SELECT 1 AS n UNION ALL
		SELECT 2 UNION ALL
		SELECT 3 UNION ALL
		SELECT 4 UNION ALL
		SELECT 5
		ORDER BY n;`

	res, err := ex.Execute(context.Background(), query, cfg, executor.Options{BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.ExpectedRowCount)

	var got [][]any
	for b, err := range res.Rows(context.Background()) {
		require.NoError(t, err)
		var values []any
		for _, r := range b {
			values = append(values, r["n"])
		}
		got = append(got, values)
	}
	assert.Equal(t, [][]any{{int64(1), int64(2)}, {int64(3), int64(4)}, {int64(5)}}, got)
}

func TestSQLite_TypedColumns(t *testing.T) {
	ex, cfg, path := sqliteExecutor(t)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE evidence (number_col INTEGER, date_col DATE, timestamp_col TIMESTAMP, string_col TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO evidence VALUES (100, date('now'), datetime('now'), 'Evidence')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	res, err := ex.Execute(context.Background(), "SELECT number_col, date_col, timestamp_col, string_col FROM evidence", cfg, executor.Options{BatchSize: executor.DefaultBatchSize})
	require.NoError(t, err)

	assert.Equal(t, []schema.ColumnType{
		{Name: "number_col", Type: schema.Number, Fidelity: schema.Precise},
		{Name: "date_col", Type: schema.Date, Fidelity: schema.Precise},
		{Name: "timestamp_col", Type: schema.Date, Fidelity: schema.Precise},
		{Name: "string_col", Type: schema.String, Fidelity: schema.Precise},
	}, res.ColumnTypes)
	assert.Equal(t, int64(1), res.ExpectedRowCount)

	rows, err := executor.Collect(res.Rows(context.Background()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(100), rows[0]["number_col"])
	assert.Equal(t, "Evidence", rows[0]["string_col"])
	assert.Len(t, rows[0], 4)
}

func TestSQLite_EmptyResult(t *testing.T) {
	ex, cfg, _ := sqliteExecutor(t)

	res, err := ex.Execute(context.Background(), "SELECT 1 AS n WHERE 1 = 0", cfg, executor.Options{BatchSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.ExpectedRowCount)
	require.Len(t, res.ColumnTypes, 1)
	assert.Equal(t, "n", res.ColumnTypes[0].Name)

	batches := 0
	for _, err := range res.Rows(context.Background()) {
		require.NoError(t, err)
		batches++
	}
	assert.Zero(t, batches)
}

func TestSQLite_BadQuery(t *testing.T) {
	ex, cfg, _ := sqliteExecutor(t)

	_, err := ex.Execute(context.Background(), "SELECT * FROM nowhere", cfg, executor.Options{BatchSize: 10})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "\n")

	// the session was returned; the pool still serves queries
	res, err := ex.Execute(context.Background(), "SELECT 1", cfg, executor.Options{BatchSize: 10})
	require.NoError(t, err)
	n, err := executor.Exhaust(res.Rows(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
