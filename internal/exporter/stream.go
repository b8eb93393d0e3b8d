package exporter

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"querysource/internal/batch"
	"querysource/internal/errs"
	"querysource/internal/schema"
)

// ExportResult contains stats about the export.
type ExportResult struct {
	RowsProcessed int64
	Batches       int
	Duration      time.Duration
}

// Export streams every batch of rows into encoder in column order and
// flushes it. Memory stays bounded by one batch. A cleanup failure reported
// after the last batch is logged and does not fail the export.
func Export(ctx context.Context, columns []schema.ColumnType, rows iter.Seq2[batch.Batch, error], encoder RowEncoder) (*ExportResult, error) {
	start := time.Now()

	if err := encoder.WriteHeader(columns); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	names := schema.Names(columns)
	values := make([]any, len(names))
	stats := &ExportResult{}

	for b, err := range rows {
		if err != nil {
			if errs.IsCleanup(err) {
				slog.Error("Cleanup failed after export", "rows", stats.RowsProcessed, "error", err)
				continue
			}
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, row := range b {
			for i, name := range names {
				values[i] = row[name]
			}
			if err := encoder.WriteRow(values); err != nil {
				return nil, fmt.Errorf("row write failed: %w", err)
			}
		}
		stats.Batches++
		stats.RowsProcessed += int64(len(b))
	}

	if err := encoder.Flush(); err != nil {
		return nil, fmt.Errorf("flush failed: %w", err)
	}
	if err := encoder.Error(); err != nil {
		return nil, fmt.Errorf("encoder error: %w", err)
	}

	stats.Duration = time.Since(start)
	return stats, nil
}
