package audit

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/softwarehub/pkg/observability"
)

// ActorDirectory resolves actor IDs to live users. IDs that no longer
// resolve are simply absent from the result.
type ActorDirectory interface {
	LookupActors(ctx context.Context, ids []string) (map[string]Actor, error)
}

// CachedDirectory memoizes lookups, including misses, in an expiring LRU
type CachedDirectory struct {
	next    ActorDirectory
	cache   *lru.LRU[string, *Actor]
	metrics *observability.Metrics
}

// NewCachedDirectory wraps next with a cache of size entries living ttl
func NewCachedDirectory(next ActorDirectory, size int, ttl time.Duration, metrics *observability.Metrics) *CachedDirectory {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedDirectory{
		next:    next,
		cache:   lru.NewLRU[string, *Actor](size, nil, ttl),
		metrics: metrics,
	}
}

// LookupActors serves cached IDs and batches the rest into one lookup
func (d *CachedDirectory) LookupActors(ctx context.Context, ids []string) (map[string]Actor, error) {
	out := make(map[string]Actor, len(ids))
	var missing []string

	for _, id := range ids {
		actor, ok := d.cache.Get(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		if actor != nil {
			out[id] = *actor
		}
	}
	d.count(len(ids)-len(missing), len(missing))

	if len(missing) == 0 {
		return out, nil
	}

	found, err := d.next.LookupActors(ctx, missing)
	if err != nil {
		return out, err
	}
	for _, id := range missing {
		if actor, ok := found[id]; ok {
			a := actor
			d.cache.Add(id, &a)
			out[id] = actor
		} else {
			d.cache.Add(id, nil)
		}
	}
	return out, nil
}

// Forget drops id from the cache, after a user is renamed or removed
func (d *CachedDirectory) Forget(id string) {
	d.cache.Remove(id)
}

func (d *CachedDirectory) count(hits, misses int) {
	if d.metrics == nil {
		return
	}
	d.metrics.CacheHitsTotal.WithLabelValues("audit_actor").Add(float64(hits))
	d.metrics.CacheMissesTotal.WithLabelValues("audit_actor").Add(float64(misses))
}

// distinctActorIDs returns the non-null actor IDs of events, first occurrence order
func distinctActorIDs(events []Event) []string {
	seen := make(map[string]struct{}, len(events))
	var ids []string
	for _, e := range events {
		if e.ActorID == nil {
			continue
		}
		if _, ok := seen[*e.ActorID]; ok {
			continue
		}
		seen[*e.ActorID] = struct{}{}
		ids = append(ids, *e.ActorID)
	}
	return ids
}
