package audit

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store. The slice index doubles as the
// insertion sequence.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append adds a copy of event
func (s *MemoryStore) Append(_ context.Context, event *Event) error {
	stored := *event
	stored.Actor = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, stored)
	return nil
}

// Find walks the log newest first
func (s *MemoryStore) Find(_ context.Context, filter Filter, offset, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]int, 0)
	for i := range s.events {
		if filter.Matches(&s.events[i]) {
			matched = append(matched, i)
		}
	}

	sort.SliceStable(matched, func(a, b int) bool {
		ea, eb := s.events[matched[a]], s.events[matched[b]]
		if !ea.CreatedAt.Equal(eb.CreatedAt) {
			return ea.CreatedAt.After(eb.CreatedAt)
		}
		return matched[a] > matched[b]
	})

	if offset >= len(matched) {
		return []Event{}, nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]Event, 0, end-offset)
	for _, idx := range matched[offset:end] {
		out = append(out, s.events[idx])
	}
	return out, nil
}

// Count returns the number of matching events
func (s *MemoryStore) Count(_ context.Context, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for i := range s.events {
		if filter.Matches(&s.events[i]) {
			n++
		}
	}
	return n, nil
}

// CountByActorName groups by actor name
func (s *MemoryStore) CountByActorName(_ context.Context, limit int) ([]ActorCount, error) {
	s.mu.RLock()
	counts := make(map[string]int64)
	for _, e := range s.events {
		counts[e.ActorName]++
	}
	s.mu.RUnlock()

	out := make([]ActorCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, ActorCount{ActorName: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ActorName < out[j].ActorName
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountByType groups by event type
func (s *MemoryStore) CountByType(_ context.Context) ([]TypeCount, error) {
	s.mu.RLock()
	counts := make(map[Type]int64)
	for _, e := range s.events {
		counts[e.Type]++
	}
	s.mu.RUnlock()

	out := make([]TypeCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, TypeCount{Type: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

// Len returns the number of stored events
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
