// Package worker provides an asynchronous worker pool that runs document
// ingestion jobs through an ingest pipeline.
//
// The pool decouples embedding and storage from the caller so that HTTP
// handlers and the directory watcher can return immediately.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/folio/pkg/ingest"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	// Source describes where the text came from, such as a file path.
	// Used for logging only.
	Source string

	DocumentID string
	Text       string
	ChunkSize  int
	Replace    bool
}

// Ingester is the pipeline surface the pool drives.
type Ingester interface {
	IngestWithOptions(ctx context.Context, documentID, text string, maxChunkSize int, opts ingest.Options) (int, error)
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Pipeline ingests each job.
	Pipeline Ingester

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// OnDone, when set, is called after each job with its result.
	OnDone func(job Job, created int, err error)

	Logger *slog.Logger
}

// Pool processes ingestion jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	// closeMu guards closed so Enqueue never sends on a closed channel.
	closeMu sync.RWMutex
	closed  bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Pipeline == nil {
		return nil, errors.New("worker pool requires an ingest pipeline")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()

	if p.closed {
		p.logger.Error("job not queued, pool closed", "document_id", job.DocumentID)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"document_id", job.DocumentID,
			"source", job.Source,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"document_id", job.DocumentID,
			"source", job.Source,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
func (p *Pool) Close() {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.closeMu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("ingest worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	created, err := p.config.Pipeline.IngestWithOptions(ctx, job.DocumentID, job.Text, job.ChunkSize, ingest.Options{
		Replace: job.Replace,
	})
	switch {
	case err == nil:
		p.logger.Info("async ingestion finished",
			"document_id", job.DocumentID,
			"source", job.Source,
			"chunks_created", created,
		)
	case errors.Is(err, ingest.ErrPartialIngestion):
		p.logger.Warn("async ingestion partially failed",
			"document_id", job.DocumentID,
			"source", job.Source,
			"error", err,
		)
	default:
		p.logger.Error("async ingestion failed",
			"document_id", job.DocumentID,
			"source", job.Source,
			"error", err,
		)
	}

	if p.config.OnDone != nil {
		p.config.OnDone(job, created, err)
	}
}
