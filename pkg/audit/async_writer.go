package audit

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/async"
	"github.com/platinummonkey/softwarehub/pkg/observability"
)

// AsyncWriter hands entries to a bounded worker pool so Record returns
// before the store is touched
type AsyncWriter struct {
	next    Writer
	pool    *async.WorkerPool
	logger  *observability.Logger
	metrics *observability.Metrics
}

// AsyncConfig configures an AsyncWriter
type AsyncConfig struct {
	Workers   int
	QueueSize int
	Logger    *observability.Logger
	Metrics   *observability.Metrics
}

// NewAsyncWriter starts a pool of workers that forward to next
func NewAsyncWriter(ctx context.Context, next Writer, cfg AsyncConfig) *AsyncWriter {
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	return &AsyncWriter{
		next: next,
		pool: async.NewWorkerPool(ctx, async.PoolConfig{
			Workers:   cfg.Workers,
			QueueSize: cfg.QueueSize,
			TaskName:  "audit writer",
			Logger:    cfg.Logger,
		}),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Record queues entry. A full queue degrades to a synchronous write; a
// closed pool drops the entry.
func (w *AsyncWriter) Record(ctx context.Context, entry Entry) {
	detached := context.WithoutCancel(ctx)
	err := w.pool.TrySubmit(func(context.Context) error {
		w.next.Record(detached, entry)
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, async.ErrPoolFull):
		observability.FromContext(ctx, w.logger).Warn("audit queue full, writing synchronously")
		w.next.Record(detached, entry)
	default:
		observability.FromContext(ctx, w.logger).WithError(err).
			WithField("audit_action", entry.Action).
			Error("failed to queue audit event")
		if w.metrics != nil {
			w.metrics.AuditWriteFailures.WithLabelValues("pool_closed").Inc()
		}
	}
}

// Pending reports queued entries not yet written
func (w *AsyncWriter) Pending() int {
	return w.pool.Pending()
}

// Close stops intake and waits for queued entries to be written
func (w *AsyncWriter) Close(ctx context.Context) error {
	timeout := 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	return w.pool.Shutdown(timeout)
}
