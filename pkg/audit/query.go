package audit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPage          = 1
	DefaultLimit         = 50
	DefaultMaxLimit      = 200
	DefaultExportMaxRows = 10000

	// TopActors is the length of Stats.UserStats
	TopActors = 10
)

var tracer = observability.Tracer("github.com/platinummonkey/softwarehub/pkg/audit")

// EngineConfig configures a QueryEngine. Zero values fall back to defaults.
type EngineConfig struct {
	MaxLimit      int
	ExportMaxRows int
	Location      *time.Location
	Directory     ActorDirectory
	Cache         StatsCache
	Logger        *observability.Logger
	Metrics       *observability.Metrics
	Now           func() time.Time
}

// QueryEngine answers filtered, paginated and aggregate reads of the audit log
type QueryEngine struct {
	store         Store
	maxLimit      int
	exportMaxRows int
	loc           *time.Location
	directory     ActorDirectory
	cache         StatsCache
	logger        *observability.Logger
	metrics       *observability.Metrics
	now           func() time.Time
}

// NewQueryEngine creates a query engine over store
func NewQueryEngine(store Store, cfg EngineConfig) *QueryEngine {
	e := &QueryEngine{
		store:         store,
		maxLimit:      cfg.MaxLimit,
		exportMaxRows: cfg.ExportMaxRows,
		loc:           cfg.Location,
		directory:     cfg.Directory,
		cache:         cfg.Cache,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		now:           cfg.Now,
	}
	if e.maxLimit <= 0 {
		e.maxLimit = DefaultMaxLimit
	}
	if e.exportMaxRows <= 0 {
		e.exportMaxRows = DefaultExportMaxRows
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.logger == nil {
		e.logger = observability.NewNopLogger()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Location is the zone used for "today" and date-only filters
func (e *QueryEngine) Location() *time.Location {
	return e.loc
}

// Clamp bounds a requested window: page and limit below 1 become 1 and
// limit is capped at the configured maximum. Callers apply DefaultPage and
// DefaultLimit for absent values before clamping.
func (e *QueryEngine) Clamp(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	if limit > e.maxLimit {
		limit = e.maxLimit
	}
	return page, limit
}

// Query returns one page of matching events, newest first
func (e *QueryEngine) Query(ctx context.Context, q Query) (*Result, error) {
	page, limit := e.Clamp(q.Page, q.Limit)

	ctx, span := tracer.Start(ctx, "audit.Query", trace.WithAttributes(
		attribute.Int("audit.page", page),
		attribute.Int("audit.limit", limit),
		attribute.String("audit.type", string(q.Type)),
	))
	defer span.End()

	var (
		events []Event
		total  int64
	)

	offset64 := int64(page-1) * int64(limit)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if offset64 > math.MaxInt32 {
			events = []Event{}
			return nil
		}
		var err error
		events, err = e.store.Find(gctx, q.Filter, int(offset64), limit)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = e.store.Count(gctx, q.Filter)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("audit query: %w", err)
	}

	e.enrich(ctx, events)

	return &Result{
		Data: events,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + int64(limit) - 1) / int64(limit),
		},
	}, nil
}

// enrich attaches live actor details. Failures leave the page as is.
func (e *QueryEngine) enrich(ctx context.Context, events []Event) {
	if e.directory == nil || len(events) == 0 {
		return
	}
	ids := distinctActorIDs(events)
	if len(ids) == 0 {
		return
	}

	actors, err := e.directory.LookupActors(ctx, ids)
	if err != nil {
		observability.FromContext(ctx, e.logger).WithError(err).Warn("failed to enrich audit events with actors")
	}
	for i := range events {
		if events[i].ActorID == nil {
			continue
		}
		if actor, ok := actors[*events[i].ActorID]; ok {
			a := actor
			events[i].Actor = &a
		}
	}
}

// Stats summarizes the whole log
func (e *QueryEngine) Stats(ctx context.Context) (*Stats, error) {
	ctx, span := tracer.Start(ctx, "audit.Stats")
	defer span.End()

	log := observability.FromContext(ctx, e.logger)

	if e.cache != nil {
		cached, ok, err := e.cache.Get(ctx)
		switch {
		case err != nil:
			log.WithError(err).Warn("audit stats cache read failed")
		case ok:
			e.countCache(true)
			span.SetAttributes(attribute.Bool("audit.cache_hit", true))
			return cached, nil
		default:
			e.countCache(false)
		}
	}

	now := e.now().In(e.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)

	stats := &Stats{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats.TotalLogs, err = e.store.Count(gctx, Filter{})
		return err
	})
	g.Go(func() error {
		var err error
		stats.TodayLogs, err = e.store.Count(gctx, Filter{StartDate: &midnight})
		return err
	})
	g.Go(func() error {
		var err error
		stats.UserStats, err = e.store.CountByActorName(gctx, TopActors)
		return err
	})
	g.Go(func() error {
		var err error
		stats.ActionStats, err = e.store.CountByType(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stats failed")
		return nil, fmt.Errorf("audit stats: %w", err)
	}

	if stats.UserStats == nil {
		stats.UserStats = []ActorCount{}
	}
	if stats.ActionStats == nil {
		stats.ActionStats = []TypeCount{}
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, stats); err != nil {
			log.WithError(err).Warn("audit stats cache write failed")
		}
	}

	return stats, nil
}

func (e *QueryEngine) countCache(hit bool) {
	if e.metrics == nil {
		return
	}
	if hit {
		e.metrics.CacheHitsTotal.WithLabelValues("audit_stats").Inc()
	} else {
		e.metrics.CacheMissesTotal.WithLabelValues("audit_stats").Inc()
	}
}

// Export returns every matching event, newest first, up to the export cap
func (e *QueryEngine) Export(ctx context.Context, filter Filter) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "audit.Export")
	defer span.End()

	events, err := e.store.Find(ctx, filter, 0, e.exportMaxRows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "export failed")
		return nil, fmt.Errorf("audit export: %w", err)
	}
	span.SetAttributes(attribute.Int("audit.rows", len(events)))
	return events, nil
}

// ParseDateBound parses an RFC 3339 timestamp or a bare YYYY-MM-DD date in
// loc. A bare date used as an upper bound covers the whole day. Unparseable
// input yields nil.
func ParseDateBound(s string, loc *time.Location, upper bool) *time.Time {
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &t
	}
	d, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return nil
	}
	if upper {
		d = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &d
}
