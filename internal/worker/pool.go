package worker

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"querysource/internal/connector"
	"querysource/internal/exporter"
	"querysource/internal/storage"
)

var errStopped = errors.New("worker pool stopped")

// Pool runs report jobs concurrently. Workers bound the number of jobs in
// flight; dbSem separately bounds how many of them hold a database session.
type Pool struct {
	jobQueue chan *ReportJob
	workers  int
	dbSem    *semaphore.Weighted
	wg       sync.WaitGroup
	quit     chan struct{}
	stopOnce sync.Once

	run     connector.Runner
	storage storage.Provider
	useGzip bool
}

// NewPool does not start the workers; call Start.
func NewPool(workers int, maxDBConcurrency int64, run connector.Runner, store storage.Provider, useGzip bool) *Pool {
	return &Pool{
		jobQueue: make(chan *ReportJob, 100),
		workers:  workers,
		dbSem:    semaphore.NewWeighted(maxDBConcurrency),
		quit:     make(chan struct{}),
		run:      run,
		storage:  store,
		useGzip:  useGzip,
	}
}

func (p *Pool) Start() {
	for i := range p.workers {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
	slog.Info("Worker pool started", "workers", p.workers)
}

// Submit queues job. It returns false when the queue is full or the pool
// is stopped.
func (p *Pool) Submit(job *ReportJob) bool {
	select {
	case <-p.quit:
		return false
	default:
	}
	select {
	case p.jobQueue <- job:
		return true
	default:
		return false
	}
}

// Stop waits for running jobs and fails the ones still queued.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
		p.wg.Wait()
		for {
			select {
			case job := <-p.jobQueue:
				job.finish(StatusFailed, errStopped)
			default:
				slog.Info("Worker pool stopped")
				return
			}
		}
	})
}

func (p *Pool) workerLoop(id int) {
	defer p.wg.Done()
	slog.Debug("Worker started", "worker_id", id)

	for {
		select {
		case <-p.quit:
			return
		default:
		}
		select {
		case job := <-p.jobQueue:
			p.processJob(id, job)
		case <-p.quit:
			return
		}
	}
}

func (p *Pool) processJob(workerID int, job *ReportJob) {
	slog.Info("Processing job", "worker_id", workerID, "job_id", job.ID, "path", job.QueryPath)

	job.Started = time.Now()
	job.Status = StatusProcessing

	if err := p.dbSem.Acquire(job.Ctx, 1); err != nil {
		p.failJob(job, fmt.Errorf("failed to acquire db slot: %w", err))
		return
	}
	skipped, err := p.executeReport(job)
	p.dbSem.Release(1)

	switch {
	case err != nil:
		p.failJob(job, err)
	case skipped:
		slog.Info("Job skipped", "job_id", job.ID, "path", job.QueryPath)
		job.finish(StatusSkipped, nil)
	default:
		slog.Info("Job completed",
			"job_id", job.ID,
			"rows", job.Stats.RowsProcessed,
			"expected_rows", job.ExpectedRows,
			"wait", job.Started.Sub(job.Submitted),
			"duration", time.Since(job.Started),
			"location", job.Location,
		)
		job.finish(StatusCompleted, nil)
	}
}

// executeReport streams the query result through an encoder, optional gzip
// and the storage object. The object is aborted on any failure so partial
// output is never committed.
func (p *Pool) executeReport(job *ReportJob) (skipped bool, err error) {
	res, err := p.run(job.Ctx, job.Query, job.QueryPath, job.BatchSize)
	if err != nil {
		return false, err
	}
	if res == nil {
		return true, nil
	}
	defer res.Close()

	job.ColumnTypes = res.ColumnTypes
	job.ExpectedRows = res.ExpectedRowCount

	ext, err := exporter.Extension(job.Format)
	if err != nil {
		return false, err
	}
	job.Key = p.objectKey(job, ext)
	obj, err := p.storage.Create(job.Ctx, job.Key)
	if err != nil {
		return false, fmt.Errorf("storage create failed: %w", err)
	}

	var out io.Writer = obj
	var gz *gzip.Writer
	if p.useGzip {
		gz = gzip.NewWriter(obj)
		out = gz
	}

	encoder, err := exporter.NewEncoder(job.Format, out)
	if err != nil {
		obj.Abort(err)
		return false, err
	}
	defer encoder.Close()

	stats, exportErr := exporter.Export(job.Ctx, res.ColumnTypes, res.Rows(job.Ctx), encoder)
	if exportErr != nil {
		obj.Abort(exportErr)
		return false, fmt.Errorf("export failed: %w", exportErr)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			obj.Abort(err)
			return false, fmt.Errorf("gzip close failed: %w", err)
		}
	}
	if err := obj.Close(); err != nil {
		return false, fmt.Errorf("storage close failed: %w", err)
	}

	job.Stats = stats
	job.Location = p.storage.Location(job.Key)
	return false, nil
}

func (p *Pool) objectKey(job *ReportJob, ext string) string {
	name := strings.TrimSuffix(filepath.Base(job.QueryPath), filepath.Ext(job.QueryPath))
	key := fmt.Sprintf("exports/%s-%s.%s", name, job.ID, ext)
	if p.useGzip {
		key += ".gz"
	}
	return key
}

func (p *Pool) failJob(job *ReportJob, err error) {
	slog.Error("Job failed", "job_id", job.ID, "path", job.QueryPath, "error", err)
	job.finish(StatusFailed, err)
}
