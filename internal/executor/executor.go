// Package executor runs a query as count, execute and batched fetch, and hands
// the caller a single-pass stream of normalized batches.
package executor

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"querysource/internal/batch"
	"querysource/internal/config"
	"querysource/internal/driver"
	"querysource/internal/errs"
	"querysource/internal/schema"
	"querysource/internal/security"
)

const (
	DefaultBatchSize = 100000

	// UnknownRowCount is reported when the count query is skipped.
	UnknownRowCount int64 = -1
)

var (
	ErrConsumed         = errors.New("result rows already consumed or closed")
	ErrInvalidBatchSize = errors.New("batch size must be a positive integer")
)

// CountMode selects how ExpectedRowCount is obtained.
type CountMode int

const (
	// CountExact runs COUNT(*) over the query before executing it.
	CountExact CountMode = iota
	// CountSkip skips the count query and reports UnknownRowCount.
	CountSkip
)

// Options control a single execution.
type Options struct {
	BatchSize int
	// CloseBeforeResults releases the cursor and session right after the
	// first fetch. Rows then yields only the first batch.
	CloseBeforeResults bool
	Count              CountMode
	// ReadOnly rejects anything but a single SELECT/WITH statement before a
	// session is acquired.
	ReadOnly bool
}

// Executor runs queries on sessions from a driver.Manager. It is safe for
// concurrent use; every Execute owns its own session.
type Executor struct {
	manager *driver.Manager
}

func New(manager *driver.Manager) *Executor {
	return &Executor{manager: manager}
}

// Execute counts, executes and fetches the first batch of query. On failure
// every opened resource is released before the error is returned.
func (e *Executor) Execute(ctx context.Context, query string, cfg config.Connection, opts Options) (*Result, error) {
	if opts.BatchSize <= 0 {
		return nil, &errs.ConfigurationError{Field: "batchSize", Cause: fmt.Errorf("%w: %d", ErrInvalidBatchSize, opts.BatchSize)}
	}

	query = security.CleanQuery(query)
	if opts.ReadOnly {
		if err := security.ValidateQuery(query); err != nil {
			return nil, &errs.ExecutionError{Stage: errs.StageValidate, Cause: err}
		}
	}

	sess, err := e.manager.Acquire(ctx, cfg)
	if err != nil {
		return nil, err
	}
	h := &handle{session: sess}

	fail := func(stage errs.Stage, err error) (*Result, error) {
		_ = h.release()
		return nil, &errs.ExecutionError{Stage: stage, Cause: err}
	}

	count := UnknownRowCount
	if opts.Count == CountExact {
		if count, err = sess.Count(ctx, query); err != nil {
			return fail(errs.StageCount, err)
		}
	}

	if h.cursor, err = sess.Query(ctx, query); err != nil {
		return fail(errs.StageExecute, err)
	}

	raw, err := h.cursor.Fetch(ctx, opts.BatchSize)
	if err != nil {
		return fail(errs.StageFetch, err)
	}
	natives, err := h.cursor.Columns()
	if err != nil {
		return fail(errs.StageFetch, err)
	}

	columns := schema.Describe(natives)
	r := &Result{
		ColumnTypes:      columns,
		ExpectedRowCount: count,
		h:                h,
		names:            schema.Names(columns),
		normalize:        batch.Normalizer(h.cursor.Shape()),
		batchSize:        opts.BatchSize,
		firstLen:         raw.Len(),
	}
	r.first = r.normalize(raw, r.names)

	slog.Debug("Query executed",
		"backend", sess.Backend().Name(),
		"columns", len(columns),
		"expected_rows", count,
		"first_batch", r.firstLen,
	)

	if opts.CloseBeforeResults {
		r.buffered = true
		_ = h.release()
		return r, nil
	}

	r.tracked = true
	r.cleanup = runtime.AddCleanup(r, func(h *handle) {
		if !h.released() {
			slog.Warn("Result discarded without being consumed, releasing session")
			_ = h.release()
		}
	}, h)
	return r, nil
}

// Result is the handle returned by Execute.
type Result struct {
	ColumnTypes []schema.ColumnType
	// ExpectedRowCount is the row count reported before streaming, or
	// UnknownRowCount.
	ExpectedRowCount int64

	h         *handle
	names     []string
	normalize batch.NormalizeFunc
	batchSize int
	first     batch.Batch
	firstLen  int
	buffered  bool

	consumed atomic.Bool
	tracked  bool
	cleanup  runtime.Cleanup
}

// Rows returns the result as a single-pass sequence of batches. The first
// batch is the one fetched by Execute; more are fetched only while batches
// come back full. An empty result yields no batches.
//
// The cursor and session are released when the sequence ends, when the
// consumer stops early, and before any error is yielded. A release failure
// after full consumption is yielded last as an *errs.CleanupError; after an
// early stop it is only logged. A second call yields ErrConsumed.
func (r *Result) Rows(ctx context.Context) iter.Seq2[batch.Batch, error] {
	return func(yield func(batch.Batch, error) bool) {
		if !r.consumed.CompareAndSwap(false, true) {
			yield(nil, ErrConsumed)
			return
		}
		r.untrack()
		defer r.h.release()

		first := r.first
		r.first = nil
		if len(first) > 0 && !yield(first, nil) {
			return
		}

		batches, rows := 1, r.firstLen
		if !r.buffered && r.firstLen == r.batchSize {
			for {
				raw, err := r.h.cursor.Fetch(ctx, r.batchSize)
				if err != nil {
					_ = r.h.release()
					yield(nil, &errs.StreamError{Batch: batches, Cause: err})
					return
				}
				n := raw.Len()
				if n == 0 {
					break
				}
				batches++
				rows += n
				if !yield(r.normalize(raw, r.names), nil) {
					return
				}
				if n < r.batchSize {
					break
				}
			}
		}

		slog.Debug("Result exhausted", "batches", batches, "rows", rows)
		if err := r.h.release(); err != nil {
			yield(nil, err)
		}
	}
}

// Close releases the cursor and session without reading further batches.
// It is safe to call at any time and more than once.
func (r *Result) Close() error {
	if r.consumed.CompareAndSwap(false, true) {
		r.untrack()
		r.first = nil
	}
	return r.h.release()
}

func (r *Result) untrack() {
	if r.tracked {
		r.cleanup.Stop()
	}
}

// handle owns the cursor and session of one execution. It must not reference
// its Result so the Result can be collected.
type handle struct {
	session *driver.Session
	cursor  driver.Cursor

	once sync.Once
	done atomic.Bool
	err  error
}

// release closes the cursor, then the session, exactly once. Failures are
// logged and returned as a single *errs.CleanupError.
func (h *handle) release() error {
	h.once.Do(func() {
		var errList []error
		if h.cursor != nil {
			if err := h.cursor.Close(); err != nil {
				slog.Error("Cursor close failed", "error", err)
				errList = append(errList, &errs.CleanupError{Resource: "cursor", Cause: err})
			}
		}
		if err := h.session.Release(); err != nil {
			errList = append(errList, err)
		}
		switch len(errList) {
		case 1:
			h.err = errList[0]
		case 2:
			h.err = &errs.CleanupError{Resource: "cursor and session", Cause: errors.Join(errList...)}
		}
		h.done.Store(true)
	})
	return h.err
}

func (h *handle) released() bool {
	return h.done.Load()
}
