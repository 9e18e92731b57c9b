package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/listing-verifier/internal/entity"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Analyzer is satisfied by *core.Analyzer.
type Analyzer interface {
	Analyze(ctx context.Context, req entity.AnalysisRequest) (entity.Analysis, error)
}

// ProcessorQueue fans jobs out to a fixed set of workers.
type ProcessorQueue struct {
	analyzer Analyzer
	logger   *slog.Logger
	workers  int
	timeout  time.Duration

	ch      chan Job
	results chan Result
	wg      sync.WaitGroup
	once    sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
			q.results = make(chan Result, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(analyzer Analyzer, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		analyzer: analyzer,
		logger:   logger,
		workers:  4,
		timeout:  3 * time.Minute,
		ch:       make(chan Job, 256),
		results:  make(chan Result, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.work(i + 1)
		}
		go func() {
			q.wg.Wait()
			close(q.results)
		}()
	})
}

func (q *ProcessorQueue) work(workerID int) {
	defer q.wg.Done()
	q.logger.Debug("queue.worker.start", "worker_id", workerID)

	for job := range q.ch {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		an, err := q.analyzer.Analyze(ctx, job.Request)
		cancel()

		res := Result{Seq: job.Seq, Request: job.Request, Analysis: an, Err: err, Elapsed: time.Since(start)}
		if err != nil {
			q.logger.Warn("queue.job.failed", "worker_id", workerID, "seq", job.Seq, "error", err)
		} else {
			q.logger.Debug("queue.job.done", "worker_id", workerID, "seq", job.Seq, "elapsed_ms", res.Elapsed.Milliseconds())
		}
		q.results <- res
	}

	q.logger.Debug("queue.worker.stop", "worker_id", workerID)
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "seq", job.Seq)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		return nil
	default:
	}
	q.logger.Debug("queue.full", "seq", job.Seq)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results yields one Result per accepted job and is closed once all workers exit.
func (q *ProcessorQueue) Results() <-chan Result { return q.results }

// Close stops intake; workers drain what is already queued.
func (q *ProcessorQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Shutdown closes intake and waits for the workers. Results must be consumed
// concurrently, or the buffer must be large enough, for this to return.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.Close()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
