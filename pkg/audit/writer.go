package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/softwarehub/pkg/observability"
)

// DefaultWriteTimeout bounds a single store append
const DefaultWriteTimeout = 5 * time.Second

var (
	errBreakerOpen = errors.New("audit breaker open, write dropped")
	errStorePanic  = errors.New("audit store panicked")
)

// Writer records audit entries. Record never fails and never panics: every
// problem is logged and counted, and the caller carries on.
type Writer interface {
	Record(ctx context.Context, entry Entry)
}

// Invalidator drops cached aggregates after a write
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// StoreWriter writes entries synchronously to a Store
type StoreWriter struct {
	store       Store
	logger      *observability.Logger
	metrics     *observability.Metrics
	breaker     *Breaker
	invalidator Invalidator
	timeout     time.Duration
	now         func() time.Time
}

// WriterOption configures a StoreWriter
type WriterOption func(*StoreWriter)

// WithLogger sets the fallback logger used when the context carries none
func WithLogger(logger *observability.Logger) WriterOption {
	return func(w *StoreWriter) { w.logger = logger }
}

// WithMetrics enables Prometheus accounting of writes and failures
func WithMetrics(metrics *observability.Metrics) WriterOption {
	return func(w *StoreWriter) { w.metrics = metrics }
}

// WithBreaker guards the store with a circuit breaker
func WithBreaker(b *Breaker) WriterOption {
	return func(w *StoreWriter) { w.breaker = b }
}

// WithInvalidator is notified after every successful write
func WithInvalidator(inv Invalidator) WriterOption {
	return func(w *StoreWriter) { w.invalidator = inv }
}

// WithWriteTimeout bounds each append. Non-positive values keep the default.
func WithWriteTimeout(d time.Duration) WriterOption {
	return func(w *StoreWriter) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) WriterOption {
	return func(w *StoreWriter) { w.now = now }
}

// NewStoreWriter creates a writer over store
func NewStoreWriter(store Store, opts ...WriterOption) *StoreWriter {
	w := &StoreWriter{
		store:   store,
		logger:  observability.NewNopLogger(),
		timeout: DefaultWriteTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Record persists entry. The append runs detached from ctx cancellation
// with its own timeout, so an aborted request still leaves its trail.
func (w *StoreWriter) Record(ctx context.Context, entry Entry) {
	log := observability.FromContext(ctx, w.logger).WithFields(map[string]interface{}{
		"audit_type":   string(entry.Type),
		"audit_action": entry.Action,
		"actor_name":   entry.ActorName,
	})

	if err := entry.Validate(); err != nil {
		w.fail(log, "invalid", err)
		return
	}

	if w.breaker != nil && !w.breaker.Allow() {
		w.fail(log, "breaker_open", errBreakerOpen)
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	event := &Event{
		ID:        uuid.NewString(),
		ActorID:   entry.ActorID,
		ActorName: entry.ActorName,
		Action:    entry.Action,
		Details:   entry.Details,
		Type:      entry.Type,
		CreatedAt: w.now().UTC(),
	}

	start := time.Now()
	err := w.append(writeCtx, log, event)
	if w.metrics != nil {
		w.metrics.AuditWriteDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		if w.breaker != nil && w.breaker.Failure() {
			log.WithField("consecutive_failures", w.breaker.threshold).Warn("audit breaker opened")
			w.setBreakerGauge(1)
		}
		w.fail(log, failureReason(err), err)
		return
	}

	if w.breaker != nil {
		w.breaker.Success()
		w.setBreakerGauge(0)
	}
	if w.metrics != nil {
		w.metrics.AuditWritesTotal.WithLabelValues(string(event.Type)).Inc()
	}

	if w.invalidator != nil {
		if err := w.invalidator.Invalidate(writeCtx); err != nil {
			log.WithError(err).Warn("failed to invalidate audit stats cache")
		}
	}
}

func (w *StoreWriter) append(ctx context.Context, log *observability.Logger, event *Event) (err error) {
	defer observability.RecoverPanicWithCallback(log, "audit store append", func(r interface{}) {
		err = fmt.Errorf("%w: %v", errStorePanic, r)
	})
	return w.store.Append(ctx, event)
}

func (w *StoreWriter) fail(log *observability.Logger, reason string, err error) {
	log.WithError(err).WithField("reason", reason).Error("failed to record audit event")
	if w.metrics != nil {
		w.metrics.AuditWriteFailures.WithLabelValues(reason).Inc()
	}
}

func (w *StoreWriter) setBreakerGauge(v float64) {
	if w.metrics != nil {
		w.metrics.AuditBreakerOpen.Set(v)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, errStorePanic):
		return "panic"
	default:
		return "store"
	}
}

// NopWriter discards every entry
type NopWriter struct{}

// Record implements Writer
func (NopWriter) Record(context.Context, Entry) {}
