package audit

import (
	"context"
)

// Store persists and reads audit events. The log is append-only, so there
// is no update or delete method.
type Store interface {
	// Append persists a fully populated event
	Append(ctx context.Context, event *Event) error

	// Find returns matching events ordered by createdAt DESC, then insertion order DESC
	Find(ctx context.Context, filter Filter, offset, limit int) ([]Event, error)

	// Count returns the number of events matching filter
	Count(ctx context.Context, filter Filter) (int64, error)

	// CountByActorName returns the top actors by event count, ties by name
	CountByActorName(ctx context.Context, limit int) ([]ActorCount, error)

	// CountByType returns the event count per type, ordered by type
	CountByType(ctx context.Context) ([]TypeCount, error)
}
