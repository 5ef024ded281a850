// Package worker runs queued inference tasks on a fixed pool of goroutines.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/wearsense/internal/adapters/mq/queue"
	"github.com/okian/wearsense/pkg/logger"
	"github.com/okian/wearsense/pkg/metrics"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Task
}

// Worker executes tasks until its queue is closed.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining the queue.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for queued inference tasks.
type InMemoryWorker struct {
	queue Queue
	name  string

	// Shutdown control
	shutdown chan struct{}
	stopOnce atomic.Bool
	done     chan struct{}

	processed atomic.Int64

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Processed returns the number of tasks this worker has executed.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			w.process(task)
		}
	}
}

// Shutdown stops the worker loop. Tasks still queued stay with the queue.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	if w.stopOnce.CompareAndSwap(false, true) {
		close(w.shutdown)
	}
}

// process runs a single task and always completes it.
func (w *InMemoryWorker) process(task queue.Task) { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	ctx := task.Ctx
	if err := ctx.Err(); err != nil {
		// The waiter already gave up; skip the model call.
		task.Complete(err)
		return
	}

	start := time.Now()
	metrics.AddWorkerActive(1)
	err := w.safeRun(ctx, task)
	metrics.AddWorkerActive(-1)
	metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	w.processed.Add(1)

	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", task.Stage)
		w.logger.Debug(ctx, "task failed",
			logger.String("task", task.ID),
			logger.String("stage", task.Stage),
			logger.Error(err),
		)
	}
	task.Complete(err)
}

func (w *InMemoryWorker) safeRun(ctx context.Context, task queue.Task) (err error) { //nolint:gocritic // hugeParam
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", queue.ErrPanicked, r)
			w.logger.Error(ctx, "task panicked",
				logger.String("stage", task.Stage),
				logger.Any("panic", r),
			)
		}
	}()
	return task.Run(ctx)
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a worker pool. A non-positive count means one worker per CPU.
func NewPool(workerCount int, q Queue, log logger.Logger) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	if log == nil {
		log = logger.Nop()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  log.Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(q,
			WithLogger(log),
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of tasks executed across the pool.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, lets workers drain it, and waits for them.
// Workers still busy when ctx (bounded by poolShutdownTimeout) ends are
// told to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			w.stop()
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
