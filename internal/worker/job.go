package worker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"querysource/internal/exporter"
	"querysource/internal/schema"
)

type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusSkipped    JobStatus = "SKIPPED"
	StatusFailed     JobStatus = "FAILED"
)

// ReportJob runs one query file and stores its result.
type ReportJob struct {
	// ID is the unique UUID v4 for the job.
	ID string
	// QueryPath is the source file; only .sql files are run.
	QueryPath string
	Query     string
	// Format is the requested output format (csv, json, excel, pdf).
	Format    string
	BatchSize int

	Submitted time.Time
	Started   time.Time
	Finished  time.Time
	Status    JobStatus
	Error     error

	// Filled in on completion.
	ColumnTypes  []schema.ColumnType
	ExpectedRows int64
	Stats        *exporter.ExportResult
	Key          string
	Location     string

	Ctx    context.Context
	Cancel context.CancelFunc
	done   chan struct{}
}

func NewReportJob(queryPath, query, format string, batchSize int, timeout time.Duration) *ReportJob {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	if format == "" {
		format = "csv"
	}
	return &ReportJob{
		ID:        uuid.New().String(),
		QueryPath: queryPath,
		Query:     query,
		Format:    format,
		BatchSize: batchSize,
		Submitted: time.Now(),
		Status:    StatusPending,
		Ctx:       ctx,
		Cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Done is closed once the job reaches a final status.
func (j *ReportJob) Done() <-chan struct{} {
	return j.done
}

func (j *ReportJob) finish(status JobStatus, err error) {
	j.Status = status
	j.Error = err
	j.Finished = time.Now()
	j.Cancel()
	close(j.done)
}
