package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Seeds a SQLite database with users and transactions for local runs:
//
//	go run ./scripts/seed_db -db demo.db
//	SOURCE_BACKEND=sqlite SOURCE_CONNECT_STRING=demo.db querysource run -file report.sql
func main() {
	path := flag.String("db", "demo.db", "SQLite database file")
	users := flag.Int("users", 100000, "Number of users")
	txs := flag.Int("transactions", 500000, "Number of transactions")
	flag.Parse()

	db, err := sql.Open("sqlite", *path)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("Creating tables...", "db", *path)
	if err := createTables(db); err != nil {
		slog.Error("Failed to create tables", "error", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	seed(db, "users", "INSERT INTO users (name, email, created_at, score) VALUES ", "(?, ?, ?, ?)", *users, 1000,
		func(idx int) []any {
			return []any{fmt.Sprintf("User%d", idx), fmt.Sprintf("user%d@example.com", idx), now, float64(idx) * 0.1}
		})
	seed(db, "transactions", "INSERT INTO transactions (user_id, amount, currency, status, created_at) VALUES ", "(?, ?, ?, ?, ?)", *txs, 2000,
		func(idx int) []any {
			uid := (idx-1)%max(*users, 1) + 1
			return []any{uid, float64(uid) * 0.25, "USD", "COMPLETED", now}
		})

	slog.Info("Database schema and data prep complete.")
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT,
			email TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			score DOUBLE
		)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER,
			amount DECIMAL(15, 2),
			currency VARCHAR(3),
			status VARCHAR(20),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_user_id ON transactions (user_id)`)
	return err
}

// seed inserts rows into table until it holds total rows, batchSize rows
// per statement.
func seed(db *sql.DB, table, insert, placeholder string, total, batchSize int, row func(idx int) []any) {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
		slog.Error("Failed to count rows", "table", table, "error", err)
		os.Exit(1)
	}
	if count >= total {
		slog.Info("Table already seeded", "table", table, "count", count)
		return
	}

	slog.Info("Seeding...", "table", table, "rows", total-count)
	start := time.Now()
	for i := count; i < total; i += batchSize {
		n := min(batchSize, total-i)
		vals := make([]any, 0, n*strings.Count(placeholder, "?"))
		placeholders := make([]string, 0, n)
		for j := range n {
			placeholders = append(placeholders, placeholder)
			vals = append(vals, row(i+j+1)...)
		}

		if _, err := db.Exec(insert+strings.Join(placeholders, ","), vals...); err != nil {
			slog.Error("Insert failed", "table", table, "error", err)
			os.Exit(1)
		}
		fmt.Printf("\rSeeding %s: %d/%d", table, i+n, total)
	}
	fmt.Println()
	slog.Info("Seeding complete", "table", table, "duration", time.Since(start))
}
