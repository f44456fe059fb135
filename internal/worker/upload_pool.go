package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/egov/grievance-service/internal/observability"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Task is one unit of blob I/O.
type Task func(ctx context.Context) error

type job struct {
	ctx  context.Context
	task Task
	done chan error
}

// Pool runs blob writes on a fixed set of workers fed by a bounded queue,
// so slow storage never consumes request goroutines without limit.
type Pool struct {
	jobs    chan job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewPool starts workers goroutines reading a queue of queueSize.
func NewPool(workers, queueSize int, logger *zap.Logger, metrics *observability.Metrics) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		jobs:    make(chan job, queueSize),
		logger:  logger,
		metrics: metrics,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Submit queues task and waits for it to finish. It returns early with ctx.Err()
// if ctx ends first; a task whose context has ended by the time a worker picks it
// up is skipped.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	j := job{ctx: ctx, task: task, done: make(chan error, 1)}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	select {
	case p.jobs <- j:
		p.metrics.SetUploadQueueLength(len(p.jobs))
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}
	p.mu.RUnlock()

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for queued tasks to drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) run() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.metrics.SetUploadQueueLength(len(p.jobs))
		if err := j.ctx.Err(); err != nil {
			j.done <- err
			continue
		}
		err := j.task(j.ctx)
		if err != nil {
			p.logger.Warn("upload task failed", zap.Error(err))
		}
		j.done <- err
	}
}
