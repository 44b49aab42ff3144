package metrics

import (
	"context"
	"log/slog"
	"time"
)

// Aggregator periodically refreshes the database-backed gauges
type Aggregator struct {
	repo     *Repository
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	done     chan struct{}
}

// NewAggregator creates a new metrics aggregator worker
func NewAggregator(repo *Repository, logger *slog.Logger, interval time.Duration) *Aggregator {
	if interval == 0 {
		interval = 1 * time.Minute
	}

	return &Aggregator{
		repo:     repo,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start begins the aggregation worker
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info("metrics aggregator started", "interval", a.interval)
	a.aggregate(ctx)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("metrics aggregator stopped")
			return
		case <-a.done:
			a.logger.Info("metrics aggregator stopped")
			return
		case <-ticker.C:
			a.aggregate(ctx)
		}
	}
}

// Stop gracefully shuts down the aggregator
func (a *Aggregator) Stop() {
	close(a.done)
}

func (a *Aggregator) aggregate(ctx context.Context) {
	snap, err := a.repo.Snapshot(ctx, a.now())
	if err != nil {
		a.logger.Error("failed to refresh gauges", "error", err)
		return
	}

	for status, count := range snap.OpenEvents {
		OpenEvents.WithLabelValues(status).Set(float64(count))
	}
	ActiveIncidents.Set(float64(snap.ActiveIncidents))
}
