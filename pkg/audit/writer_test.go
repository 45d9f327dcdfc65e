package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEntry() Entry {
	return Entry{
		ActorID:   strPtr("u-1"),
		ActorName: "Ana Admin",
		Action:    "Criação de usuário",
		Details:   "Usuário 'Bia' foi criado com perfil Editor",
		Type:      TypeCreate,
	}
}

type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return c.err
}

func TestStoreWriter_Record(t *testing.T) {
	store := NewMemoryStore()
	inv := &countingInvalidator{}
	fixed := baseTime.In(time.FixedZone("BRT", -3*3600))
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	w := NewStoreWriter(store,
		WithInvalidator(inv),
		WithMetrics(metrics),
		WithClock(func() time.Time { return fixed }),
	)
	w.Record(context.Background(), validEntry())

	require.Equal(t, 1, store.Len())
	events, err := store.Find(context.Background(), Filter{}, 0, 1)
	require.NoError(t, err)

	got := events[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "u-1", *got.ActorID)
	assert.Equal(t, "Ana Admin", got.ActorName)
	assert.Equal(t, TypeCreate, got.Type)
	assert.Equal(t, time.UTC, got.CreatedAt.Location())
	assert.True(t, got.CreatedAt.Equal(baseTime))

	assert.Equal(t, 1, inv.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuditWritesTotal.WithLabelValues("create")))
}

func TestStoreWriter_SwallowsStoreFailure(t *testing.T) {
	store := &failingStore{}
	logger, buf := newBufferLogger()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	inv := &countingInvalidator{}

	w := NewStoreWriter(store, WithLogger(logger), WithMetrics(metrics), WithInvalidator(inv))
	assert.NotPanics(t, func() { w.Record(context.Background(), validEntry()) })

	assert.Equal(t, 1, store.attempts())
	assert.Zero(t, inv.calls)
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), "failed to record audit event")
	assert.Contains(t, buf.String(), `"reason":"store"`)
	assert.Contains(t, buf.String(), "connection refused")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuditWriteFailures.WithLabelValues("store")))
}

func TestStoreWriter_SwallowsPanic(t *testing.T) {
	logger, buf := newBufferLogger()
	w := NewStoreWriter(&panickingStore{}, WithLogger(logger))

	assert.NotPanics(t, func() { w.Record(context.Background(), validEntry()) })
	assert.Contains(t, buf.String(), `"reason":"panic"`)
}

func TestStoreWriter_Timeout(t *testing.T) {
	logger, buf := newBufferLogger()
	w := NewStoreWriter(&blockingStore{}, WithLogger(logger), WithWriteTimeout(20*time.Millisecond))

	start := time.Now()
	w.Record(context.Background(), validEntry())
	assert.Less(t, time.Since(start), time.Second)
	assert.Contains(t, buf.String(), `"reason":"timeout"`)
}

func TestStoreWriter_IgnoresCallerCancellation(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewStoreWriter(store).Record(ctx, validEntry())
	assert.Equal(t, 1, store.Len())
}

func TestStoreWriter_InvalidEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
	}{
		{"missing actor name", Entry{Action: "x", Type: TypeLogin}},
		{"missing action", Entry{ActorName: "a", Type: TypeLogin}},
		{"unknown type", Entry{ActorName: "a", Action: "x", Type: "purge"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			logger, buf := newBufferLogger()
			NewStoreWriter(store, WithLogger(logger)).Record(context.Background(), tt.entry)

			assert.Zero(t, store.Len())
			assert.Contains(t, buf.String(), `"reason":"invalid"`)
		})
	}
}

func TestStoreWriter_InvalidatorFailureIsLogged(t *testing.T) {
	store := NewMemoryStore()
	logger, buf := newBufferLogger()
	inv := &countingInvalidator{err: errors.New("redis down")}

	NewStoreWriter(store, WithLogger(logger), WithInvalidator(inv)).Record(context.Background(), validEntry())

	assert.Equal(t, 1, store.Len())
	assert.Contains(t, buf.String(), "failed to invalidate audit stats cache")
}

func TestStoreWriter_BreakerDropsAfterThreshold(t *testing.T) {
	store := &failingStore{}
	breaker := NewBreaker(3, time.Minute)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	w := NewStoreWriter(store, WithBreaker(breaker), WithMetrics(metrics))
	for i := 0; i < 5; i++ {
		w.Record(context.Background(), validEntry())
	}

	assert.Equal(t, 3, store.attempts())
	assert.True(t, breaker.IsOpen())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.AuditWriteFailures.WithLabelValues("breaker_open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuditBreakerOpen))
}

func TestStoreWriter_TotalMatchesSuccessfulWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	w := NewStoreWriter(store)

	entries := []Entry{
		validEntry(),
		{ActorName: "x"},
		{ActorName: "visitor@example.com", Action: "Falha de login", Type: TypeLogin},
		{ActorName: "y", Action: "z", Type: "bogus"},
		validEntry(),
	}
	for _, e := range entries {
		w.Record(ctx, e)
	}

	engine := NewQueryEngine(store, EngineConfig{})
	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalLogs)
}

func TestNopWriter(t *testing.T) {
	assert.NotPanics(t, func() { NopWriter{}.Record(context.Background(), validEntry()) })
}
