package audit

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/softwarehub/pkg/observability"
	"github.com/platinummonkey/softwarehub/pkg/storage/storagetest"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

// seedEvent appends an event directly, bypassing the writer
func seedEvent(t *testing.T, store Store, actorID *string, actorName string, typ Type, at time.Time) Event {
	t.Helper()
	e := Event{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		ActorName: actorName,
		Action:    "action " + string(typ),
		Details:   "details",
		Type:      typ,
		CreatedAt: at.UTC(),
	}
	require.NoError(t, store.Append(context.Background(), &e))
	return e
}

// storeFactories lets one test body run against every Store implementation
func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			store, err := NewSQLStore(storagetest.NewSQLite(t), nil)
			require.NoError(t, err)
			return store
		},
	}
}

// lockedBuffer collects log output written from worker goroutines
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newBufferLogger() (*observability.Logger, *lockedBuffer) {
	buf := &lockedBuffer{}
	return observability.NewLogger(observability.DebugLevel, buf), buf
}

var errStoreDown = errors.New("connection refused")

// failingStore fails every call
type failingStore struct {
	appends int
	mu      sync.Mutex
}

func (s *failingStore) Append(context.Context, *Event) error {
	s.mu.Lock()
	s.appends++
	s.mu.Unlock()
	return errStoreDown
}

func (s *failingStore) Find(context.Context, Filter, int, int) ([]Event, error) {
	return nil, errStoreDown
}

func (s *failingStore) Count(context.Context, Filter) (int64, error) { return 0, errStoreDown }

func (s *failingStore) CountByActorName(context.Context, int) ([]ActorCount, error) {
	return nil, errStoreDown
}

func (s *failingStore) CountByType(context.Context) ([]TypeCount, error) { return nil, errStoreDown }

func (s *failingStore) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appends
}

// panickingStore panics on Append
type panickingStore struct{ MemoryStore }

func (s *panickingStore) Append(context.Context, *Event) error { panic("disk on fire") }

// blockingStore honors ctx on Append
type blockingStore struct{ MemoryStore }

func (s *blockingStore) Append(ctx context.Context, _ *Event) error {
	<-ctx.Done()
	return ctx.Err()
}

// staticDirectory resolves a fixed set of actors and counts lookups
type staticDirectory struct {
	mu      sync.Mutex
	actors  map[string]Actor
	err     error
	lookups [][]string
}

func (d *staticDirectory) LookupActors(_ context.Context, ids []string) (map[string]Actor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups = append(d.lookups, append([]string(nil), ids...))
	if d.err != nil {
		return nil, d.err
	}
	out := make(map[string]Actor)
	for _, id := range ids {
		if a, ok := d.actors[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}
