package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/observability"
	"github.com/robfig/cron/v3"
)

// DefaultGaugeSchedule refreshes the audit gauges once a minute
const DefaultGaugeSchedule = "@every 1m"

// GaugeRefresher copies Stats totals into the Prometheus audit gauges
type GaugeRefresher struct {
	engine  *QueryEngine
	metrics *observability.Metrics
	logger  *observability.Logger
	timeout time.Duration
}

// NewGaugeRefresher creates a refresher
func NewGaugeRefresher(engine *QueryEngine, metrics *observability.Metrics, logger *observability.Logger) *GaugeRefresher {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &GaugeRefresher{engine: engine, metrics: metrics, logger: logger, timeout: 10 * time.Second}
}

// Refresh reads Stats once and updates the gauges
func (g *GaugeRefresher) Refresh(ctx context.Context) error {
	stats, err := g.engine.Stats(ctx)
	if err != nil {
		return err
	}
	g.metrics.AuditEventsTotal.Set(float64(stats.TotalLogs))
	g.metrics.AuditEventsToday.Set(float64(stats.TodayLogs))
	return nil
}

// Schedule registers Refresh on c with a standard cron spec or @every descriptor
func (g *GaugeRefresher) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	if spec == "" {
		spec = DefaultGaugeSchedule
	}
	id, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()
		if err := g.Refresh(ctx); err != nil {
			g.logger.WithError(err).Warn("failed to refresh audit gauges")
		}
	})
	if err != nil {
		return 0, fmt.Errorf("invalid audit gauge schedule %q: %w", spec, err)
	}
	return id, nil
}
