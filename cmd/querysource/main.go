package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"querysource/internal/config"
	"querysource/internal/connector"
	"querysource/internal/driver"
	"querysource/internal/executor"
	"querysource/internal/exporter"
	"querysource/internal/storage"
	"querysource/internal/worker"
)

var version = "dev"

func usage() {
	fmt.Fprintf(os.Stderr, "QuerySource %s\n\n", version)
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  querysource test                      Check the configured connection\n")
	fmt.Fprintf(os.Stderr, "  querysource run -file q.sql [flags]   Stream one query to stdout\n")
	fmt.Fprintf(os.Stderr, "  querysource export -dir queries/      Export every .sql file to storage\n")
	fmt.Fprintf(os.Stderr, "  querysource options                   Print the connection options\n")
	fmt.Fprintf(os.Stderr, "  querysource version\n")
	fmt.Fprintf(os.Stderr, "\nThe connection comes from CONNECTION_FILE or the SOURCE_* variables.\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	// stdout carries query output.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: config.Load().LogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "test":
		err = cmdTest(ctx, os.Args[2:])
	case "run":
		err = cmdRun(ctx, os.Args[2:])
	case "export":
		err = cmdExport(ctx, os.Args[2:])
	case "options":
		err = printJSON(connector.Options)
	case "version":
		fmt.Printf("QuerySource %s\n", version)
	case "-h", "-help", "--help", "help":
		usage()
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

type app struct {
	cfg       *config.Config
	conn      config.Connection
	manager   *driver.Manager
	connector *connector.Connector
}

func newApp(connectionFile string) (*app, error) {
	cfg := config.Load()
	if connectionFile != "" {
		cfg.ConnectionFile = connectionFile
	}
	conn, err := cfg.SourceConnection()
	if err != nil {
		return nil, err
	}

	countMode := executor.CountExact
	if !cfg.CountRows {
		countMode = executor.CountSkip
	}
	slog.Debug("Loaded configuration", "env", cfg.AppEnv, "backend", conn.Backend)
	m := driver.NewManager(driver.DefaultBackends()...)
	return &app{cfg: cfg, conn: conn, manager: m, connector: connector.New(m, countMode)}, nil
}

func (a *app) Close() {
	if err := a.manager.Close(); err != nil {
		slog.Warn("Failed to close pools", "error", err)
	}
}

func cmdTest(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("test", flag.ExitOnError)
	connFile := fset.String("conn", "", "Connection file (overrides CONNECTION_FILE)")
	_ = fset.Parse(args)

	a, err := newApp(*connFile)
	if err != nil {
		return err
	}
	defer a.Close()

	status := a.connector.TestConnection(ctx, a.conn)
	if err := printJSON(status); err != nil {
		return err
	}
	if !status.OK {
		return errors.New(status.Reason)
	}
	return nil
}

func cmdRun(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("run", flag.ExitOnError)
	connFile := fset.String("conn", "", "Connection file (overrides CONNECTION_FILE)")
	file := fset.String("file", "", "Query file to run (.sql)")
	format := fset.String("format", "", "Output format: csv, json, excel, pdf (default EXPORT_FORMAT)")
	batchSize := fset.Int("batch", 0, "Rows per fetch (default BATCH_SIZE)")
	_ = fset.Parse(args)

	if *file == "" {
		return errors.New("-file is required")
	}
	query, err := os.ReadFile(*file)
	if err != nil {
		return err
	}

	a, err := newApp(*connFile)
	if err != nil {
		return err
	}
	defer a.Close()

	if *format == "" {
		*format = a.cfg.ExportFormat
	}
	if *batchSize == 0 {
		*batchSize = a.cfg.BatchSize
	}

	encoder, err := exporter.NewEncoder(*format, os.Stdout)
	if err != nil {
		return err
	}
	defer encoder.Close()

	res, err := a.connector.GetRunner(a.conn)(ctx, string(query), *file, *batchSize)
	if err != nil {
		return err
	}
	if res == nil {
		return fmt.Errorf("%s is not a query file", *file)
	}
	defer res.Close()

	stats, err := exporter.Export(ctx, res.ColumnTypes, res.Rows(ctx), encoder)
	if err != nil {
		return err
	}
	slog.Info("Query completed",
		"file", *file,
		"rows", stats.RowsProcessed,
		"expected_rows", res.ExpectedRowCount,
		"batches", stats.Batches,
		"duration", stats.Duration,
	)
	return nil
}

func cmdExport(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("export", flag.ExitOnError)
	connFile := fset.String("conn", "", "Connection file (overrides CONNECTION_FILE)")
	dir := fset.String("dir", ".", "Directory of query files")
	format := fset.String("format", "", "Output format (default EXPORT_FORMAT)")
	_ = fset.Parse(args)

	a, err := newApp(*connFile)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := storage.New(ctx, a.cfg)
	if err != nil {
		return err
	}
	if *format == "" {
		*format = a.cfg.ExportFormat
	}

	pool := worker.NewPool(a.cfg.WorkerCount, a.cfg.MaxDBConcurrency, a.connector.GetRunner(a.conn), store, a.cfg.Compression)
	pool.Start()
	defer pool.Stop()

	var jobs []*worker.ReportJob
	drained := 0
	err = filepath.WalkDir(*dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		var query []byte
		if connector.IsQueryFile(path) {
			if query, err = os.ReadFile(path); err != nil {
				return err
			}
		}
		job := worker.NewReportJob(path, string(query), *format, a.cfg.BatchSize, a.cfg.DefaultTimeout)
		// The queue is bounded; wait for earlier jobs to drain it.
		for !pool.Submit(job) {
			if drained == len(jobs) {
				return errors.New("worker pool rejected job")
			}
			select {
			case <-jobs[drained].Done():
				drained++
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		jobs = append(jobs, job)
		return nil
	})
	if err != nil {
		return err
	}

	summary := map[worker.JobStatus]int{}
	for _, job := range jobs {
		select {
		case <-job.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
		summary[job.Status]++
		if job.Status == worker.StatusFailed {
			slog.Error("Export failed", "path", job.QueryPath, "error", job.Error)
		}
	}
	slog.Info("Export finished",
		"completed", summary[worker.StatusCompleted],
		"skipped", summary[worker.StatusSkipped],
		"failed", summary[worker.StatusFailed],
	)
	if n := summary[worker.StatusFailed]; n > 0 {
		return fmt.Errorf("%d exports failed", n)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
