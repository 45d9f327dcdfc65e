package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_FindOrdering(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)

			older := seedEvent(t, store, nil, "Alice", TypeCreate, baseTime.Add(-time.Hour))
			tieFirst := seedEvent(t, store, nil, "Bob", TypeUpdate, baseTime)
			tieSecond := seedEvent(t, store, nil, "Carol", TypeDelete, baseTime)
			newest := seedEvent(t, store, nil, "Dave", TypeLogin, baseTime.Add(time.Minute))

			events, err := store.Find(ctx, Filter{}, 0, 10)
			require.NoError(t, err)
			require.Len(t, events, 4)

			ids := []string{events[0].ID, events[1].ID, events[2].ID, events[3].ID}
			assert.Equal(t, []string{newest.ID, tieSecond.ID, tieFirst.ID, older.ID}, ids)
			assert.True(t, events[0].CreatedAt.Equal(newest.CreatedAt))
		})
	}
}

func TestStore_FindWindow(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			for i := 0; i < 15; i++ {
				seedEvent(t, store, nil, "Alice", TypeCreate, baseTime.Add(time.Duration(i)*time.Second))
			}

			page, err := store.Find(ctx, Filter{}, 10, 10)
			require.NoError(t, err)
			assert.Len(t, page, 5)

			empty, err := store.Find(ctx, Filter{}, 100, 10)
			require.NoError(t, err)
			assert.Empty(t, empty)
			assert.NotNil(t, empty)
		})
	}
}

func TestStore_Filters(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)

			aliceID := "11111111-1111-4111-8111-111111111111"
			seedEvent(t, store, strPtr(aliceID), "Alice Smith", TypeCreate, baseTime.Add(-48*time.Hour))
			seedEvent(t, store, strPtr(aliceID), "Alice Smith", TypeUpdate, baseTime)
			seedEvent(t, store, nil, "bob@example.com", TypeLogin, baseTime)
			seedEvent(t, store, nil, "100%_real", TypeExport, baseTime)
			seedEvent(t, store, nil, "100 real", TypeExport, baseTime)
			seedEvent(t, store, nil, "ÁLVARO Conceição", TypeDelete, baseTime.Add(-48*time.Hour))

			start := baseTime.Add(-time.Hour)
			end := baseTime.Add(time.Hour)

			tests := []struct {
				name   string
				filter Filter
				want   int64
			}{
				{"no filter", Filter{}, 6},
				{"actor id", Filter{ActorID: aliceID}, 2},
				{"unknown actor id", Filter{ActorID: "nobody"}, 0},
				{"actor name substring case-insensitive", Filter{ActorName: "ali"}, 2},
				{"actor name upper", Filter{ActorName: "SMITH"}, 2},
				{"wildcards are literal", Filter{ActorName: "%_"}, 1},
				{"actor name folds non-ascii lower", Filter{ActorName: "álvaro"}, 1},
				{"actor name folds non-ascii upper", Filter{ActorName: "CONCEIÇÃO"}, 1},
				{"type", Filter{Type: TypeExport}, 2},
				{"unknown type", Filter{Type: Type("bogus")}, 0},
				{"start only", Filter{StartDate: &start}, 4},
				{"end only", Filter{EndDate: &start}, 2},
				{"range", Filter{StartDate: &start, EndDate: &end}, 4},
				{"combined", Filter{ActorID: aliceID, Type: TypeUpdate, StartDate: &start}, 1},
				{"inclusive bounds", Filter{StartDate: &baseTime, EndDate: &baseTime}, 4},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					n, err := store.Count(ctx, tt.filter)
					require.NoError(t, err)
					assert.Equal(t, tt.want, n)

					events, err := store.Find(ctx, tt.filter, 0, 50)
					require.NoError(t, err)
					assert.Len(t, events, int(tt.want))
					for _, e := range events {
						assert.True(t, tt.filter.Matches(&e), "event %s does not match filter", e.ID)
					}
				})
			}
		})
	}
}

func TestStore_Aggregates(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)

			for i := 0; i < 3; i++ {
				seedEvent(t, store, nil, "Bob", TypeCreate, baseTime)
			}
			seedEvent(t, store, nil, "Alice", TypeUpdate, baseTime)
			seedEvent(t, store, nil, "Alice", TypeCreate, baseTime)
			seedEvent(t, store, nil, "Carol", TypeLogin, baseTime)
			seedEvent(t, store, nil, "Aaron", TypeLogin, baseTime)

			actors, err := store.CountByActorName(ctx, 3)
			require.NoError(t, err)
			assert.Equal(t, []ActorCount{
				{ActorName: "Bob", Count: 3},
				{ActorName: "Alice", Count: 2},
				{ActorName: "Aaron", Count: 1},
			}, actors)

			types, err := store.CountByType(ctx)
			require.NoError(t, err)
			assert.Equal(t, []TypeCount{
				{Type: TypeCreate, Count: 4},
				{Type: TypeLogin, Count: 2},
				{Type: TypeUpdate, Count: 1},
			}, types)
		})
	}
}

func TestStore_NullActorRoundTrip(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			seedEvent(t, store, nil, "ghost@example.com", TypeLogin, baseTime)
			seedEvent(t, store, strPtr("u-1"), "Ana", TypeLogin, baseTime.Add(time.Second))

			events, err := store.Find(context.Background(), Filter{}, 0, 10)
			require.NoError(t, err)
			require.Len(t, events, 2)
			require.NotNil(t, events[0].ActorID)
			assert.Equal(t, "u-1", *events[0].ActorID)
			assert.Nil(t, events[1].ActorID)
		})
	}
}
