package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"carrental/internal/app/policies"
)

// Pool is an in-process queue drained by a fixed set of workers. Dispatch
// never blocks: a full queue is reported as policies.ErrQueueFull.
type Pool struct {
	executor TaskExecutor
	queue    chan policies.ConfirmTask
	workers  int
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(executor TaskExecutor, workers, queueSize int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		executor: executor,
		queue:    make(chan policies.ConfirmTask, queueSize),
		workers:  workers,
		timeout:  time.Minute,
		logger:   logger,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.workerLoop(id)
		}(i)
	}
	p.logger.Info("confirmation workers started", "workers", p.workers, "queue_size", cap(p.queue))
}

func (p *Pool) Dispatch(ctx context.Context, task policies.ConfirmTask) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return policies.ErrQueueFull
	}
}

// Close stops accepting tasks and waits until queued ones are done.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) workerLoop(id int) {
	for task := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.executor.Execute(ctx, task); err != nil {
			p.logger.Error("confirmation task failed", "worker", id, "task_id", task.TaskID, "error", err)
		}
		cancel()
	}
}

var _ policies.TaskDispatcher = (*Pool)(nil)
