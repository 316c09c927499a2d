package pool

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Harsh-BH/codepad/internal/domain"
	"github.com/Harsh-BH/codepad/internal/repository"
)

// DefaultQueueSize is the job buffer used when New receives a non-positive size.
const DefaultQueueSize = 64

// Executor runs one execution request to a terminal result.
type Executor interface {
	Execute(ctx context.Context, req *domain.ExecutionRequest, progress domain.ProgressFunc) (*domain.ExecutionResult, error)
}

// Job is one execution handed to the pool.
type Job struct {
	Request  domain.ExecutionRequest
	Progress domain.ProgressFunc

	// Done is called exactly once from the worker goroutine with the outcome.
	Done func(result *domain.ExecutionResult, err error)
}

// WorkerPool manages a fixed-size pool of goroutines that run execution jobs
// off the session loops.
type WorkerPool struct {
	size     int
	jobs     chan *Job
	executor Executor
	results  repository.ResultStore
	logger   *zap.Logger

	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

// NewWorkerPool creates a new fixed-size worker pool. results may be nil.
func NewWorkerPool(size, queueSize int, executor Executor, results repository.ResultStore, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &WorkerPool{
		size:     size,
		jobs:     make(chan *Job, queueSize),
		executor: executor,
		results:  results,
		logger:   logger,
	}
}

// Start launches all worker goroutines. Call Stop to wait for them to finish.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("pool_size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Submit queues a job without blocking. It returns domain.ErrPoolBusy when the
// queue is full and domain.ErrPoolStopped once the pool is stopped.
func (p *WorkerPool) Submit(job *Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return domain.ErrPoolStopped
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		return domain.ErrPoolBusy
	}
}

// Stop closes the queue, lets workers drain queued jobs and waits for them to exit.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.jobs)
	}
	p.mu.Unlock()

	p.wg.Wait()

	// Workers that exited on context cancellation leave jobs behind.
	for job := range p.jobs {
		if job.Done != nil {
			job.Done(nil, context.Canceled)
		}
	}
	p.logger.Info("Worker pool stopped")
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		case job, ok := <-p.jobs:
			if !ok {
				p.logger.Debug("Job channel closed", zap.Int("worker_id", id))
				return
			}
			p.process(ctx, id, job)
		}
	}
}

// process runs a single job. A panic is recovered into an error for that job
// only, so the worker keeps serving the queue.
func (p *WorkerPool) process(ctx context.Context, id int, job *Job) {
	req := &job.Request
	var (
		result *domain.ExecutionResult
		err    error
	)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker panic recovered",
				zap.Int("worker_id", id),
				zap.String("request_id", req.ID.String()),
				zap.Any("panic", r),
			)
			result, err = nil, fmt.Errorf("pool: execution panicked: %v", r)
		}
		if job.Done != nil {
			job.Done(result, err)
		}
	}()

	p.logger.Info("Worker processing execution",
		zap.Int("worker_id", id),
		zap.String("request_id", req.ID.String()),
		zap.String("document_id", req.DocumentID.String()),
		zap.String("language", string(req.Language)),
	)

	result, err = p.executor.Execute(ctx, req, job.Progress)
	if err != nil {
		p.logger.Warn("Execution rejected",
			zap.Int("worker_id", id),
			zap.String("request_id", req.ID.String()),
			zap.Error(err),
		)
		return
	}

	if p.results != nil {
		// The result is still delivered when storing it fails.
		if storeErr := p.results.SetResult(ctx, req, result); storeErr != nil {
			p.logger.Error("Failed to store execution result",
				zap.String("request_id", req.ID.String()),
				zap.Error(storeErr),
			)
		}
	}
}
