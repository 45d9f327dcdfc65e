package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/observability"
)

var (
	// ErrPoolClosed is returned when submitting to a pool that is shutting down
	ErrPoolClosed = errors.New("worker pool shut down")
	// ErrPoolFull is returned by TrySubmit when the queue has no free slot
	ErrPoolFull = errors.New("worker pool queue full")
)

// Task is a unit of work run by SafeGo or a WorkerPool
type Task func(context.Context) error

// SafeGo executes fn in a goroutine with a timeout and panic recovery.
// Errors and panics are logged, never propagated.
//
// Example:
//
//	async.SafeGo(ctx, logger, 10*time.Second, "audit gauge refresh", func(ctx context.Context) error {
//	    return refresher.Refresh(ctx)
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn Task) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()
		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Error("background task failed")
		}
	}()
}

// PoolConfig configures a WorkerPool
type PoolConfig struct {
	Workers     int
	QueueSize   int
	TaskName    string
	TaskTimeout time.Duration
	Logger      *observability.Logger
	// OnError receives task errors and recovered panics, optional
	OnError func(error)
}

// WorkerPool runs submitted tasks on a fixed set of goroutines. Shutdown
// stops intake and drains queued tasks before returning.
type WorkerPool struct {
	cfg    PoolConfig
	queue  chan Task
	doneCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewWorkerPool creates a pool and starts its workers.
//
//	pool := async.NewWorkerPool(ctx, async.PoolConfig{Workers: 4, TaskName: "audit"})
//	defer pool.Shutdown(5 * time.Second)
func NewWorkerPool(ctx context.Context, cfg PoolConfig) *WorkerPool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = cfg.Workers * 64
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(ctx)
	pool := &WorkerPool{
		cfg:    cfg,
		queue:  make(chan Task, cfg.QueueSize),
		doneCh: make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < cfg.Workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				pool.worker(id)
			}(i)
		}
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// TrySubmit queues fn without blocking
func (p *WorkerPool) TrySubmit(fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- fn:
		return nil
	default:
		return ErrPoolFull
	}
}

// Pending reports the number of queued tasks not yet picked up
func (p *WorkerPool) Pending() int {
	return len(p.queue)
}

// Shutdown stops accepting work and waits up to timeout for queued tasks
// to finish. Running tasks are cancelled when the timeout expires.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		select {
		case <-p.doneCh:
		case <-time.After(timeout):
			p.shutdownErr = fmt.Errorf("worker pool %s shutdown timed out after %v with %d tasks pending",
				p.cfg.TaskName, timeout, len(p.queue))
		}
		p.cancel()
	})
	return p.shutdownErr
}

func (p *WorkerPool) worker(id int) {
	for fn := range p.queue {
		p.run(id, fn)
	}
}

func (p *WorkerPool) run(id int, fn Task) {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.TaskTimeout)
	defer cancel()

	defer observability.RecoverPanicWithCallback(
		p.cfg.Logger.WithField("worker", id),
		p.cfg.TaskName,
		func(r interface{}) { p.report(observability.MustRecover(r)) },
	)

	if err := fn(ctx); err != nil {
		p.report(err)
	}
}

func (p *WorkerPool) report(err error) {
	if p.cfg.OnError != nil {
		p.cfg.OnError(err)
		return
	}
	p.cfg.Logger.WithError(err).WithField("task", p.cfg.TaskName).Warn("worker task failed")
}
