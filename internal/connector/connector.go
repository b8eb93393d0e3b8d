// Package connector is the surface a reporting host uses to run queries:
// RunQuery, GetRunner and TestConnection, plus the declarative option schema.
package connector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"querysource/internal/config"
	"querysource/internal/driver"
	"querysource/internal/errs"
	"querysource/internal/executor"
)

// DefaultBatchSize is used when a caller passes a zero batch size.
const DefaultBatchSize = executor.DefaultBatchSize

// fallbackReason is reported by TestConnection when a failure carries no message.
const fallbackReason = "Invalid Credentials"

// Connector runs queries for any configured backend.
type Connector struct {
	manager  *driver.Manager
	executor *executor.Executor
	count    executor.CountMode
}

// New returns a Connector backed by manager. count selects whether
// RunQuery issues the COUNT(*) query.
func New(manager *driver.Manager, count executor.CountMode) *Connector {
	return &Connector{
		manager:  manager,
		executor: executor.New(manager),
		count:    count,
	}
}

// RunQuery executes query and returns its result handle. Every returned
// error renders as a single line.
func (c *Connector) RunQuery(ctx context.Context, query string, cfg config.Connection, batchSize int, closeBeforeResults bool) (*executor.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := c.manager.Backend(cfg.Backend); err != nil {
		return nil, err
	}
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}

	return c.executor.Execute(ctx, query, cfg, executor.Options{
		BatchSize:          batchSize,
		CloseBeforeResults: closeBeforeResults,
		Count:              c.count,
		ReadOnly:           cfg.ReadOnlyGuard,
	})
}

// Runner runs one query file. It returns a nil Result and a nil error for
// paths that are not .sql files.
type Runner func(ctx context.Context, queryContent, queryPath string, batchSize int) (*executor.Result, error)

// GetRunner binds cfg into a Runner.
func (c *Connector) GetRunner(cfg config.Connection) Runner {
	return func(ctx context.Context, queryContent, queryPath string, batchSize int) (*executor.Result, error) {
		if !IsQueryFile(queryPath) {
			return nil, nil
		}
		return c.RunQuery(ctx, queryContent, cfg, batchSize, false)
	}
}

// IsQueryFile reports whether path names an executable query file. The
// extension match is case-sensitive.
func IsQueryFile(path string) bool {
	return strings.HasSuffix(path, ".sql")
}

// Status is the outcome of TestConnection. Reason is set only when OK is false.
type Status struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// TestConnection runs the backend's canary query and drains its result.
// It never returns an error: failures are reported through Status.Reason.
func (c *Connector) TestConnection(ctx context.Context, cfg config.Connection) (status Status) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Connection test panicked", "backend", cfg.Backend, "panic", r)
			status = failed(fmt.Errorf("%v", r))
		}
	}()

	backend, err := c.manager.Backend(cfg.Backend)
	if err != nil {
		return failed(err)
	}

	res, err := c.RunQuery(ctx, backend.CanaryQuery(), cfg, DefaultBatchSize, false)
	if err != nil {
		slog.Warn("Connection test failed", "backend", cfg.Backend, "error", err)
		return failed(err)
	}
	if _, err := executor.Exhaust(res.Rows(ctx)); err != nil {
		slog.Warn("Connection test failed", "backend", cfg.Backend, "error", err)
		return failed(err)
	}
	return Status{OK: true}
}

func failed(err error) Status {
	reason := strings.TrimSpace(errs.Message(err))
	if reason == "" {
		reason = fallbackReason
	}
	return Status{Reason: reason}
}
