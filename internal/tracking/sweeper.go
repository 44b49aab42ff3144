package tracking

import (
	"context"
	"log/slog"
	"time"

	"github.com/saturnino-fabrica-de-software/guardian/internal/metrics"
)

// Expirer deletes rows whose retention ended at or before now.
type Expirer interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper removes expired samples and incidents. Readers already ignore
// expired rows, so a late sweep only costs disk.
type Sweeper struct {
	samples   Expirer
	incidents Expirer
	logger    *slog.Logger
	interval  time.Duration
	now       func() time.Time
	done      chan struct{}
}

// NewSweeper creates the retention worker
func NewSweeper(samples, incidents Expirer, logger *slog.Logger, interval time.Duration) *Sweeper {
	if interval == 0 {
		interval = time.Minute
	}

	return &Sweeper{
		samples:   samples,
		incidents: incidents,
		logger:    logger,
		interval:  interval,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start runs the sweeper until ctx is done or Stop is called
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("retention sweeper started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention sweeper stopped")
			return
		case <-s.done:
			s.logger.Info("retention sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Stop gracefully shuts down the sweeper
func (s *Sweeper) Stop() {
	close(s.done)
}

// Sweep runs one pass and returns the rows removed per table.
func (s *Sweeper) Sweep(ctx context.Context) map[string]int64 {
	now := s.now()
	removed := make(map[string]int64, 2)

	for _, t := range []struct {
		table string
		store Expirer
	}{
		{"location_samples", s.samples},
		{"incidents", s.incidents},
	} {
		n, err := t.store.DeleteExpired(ctx, now)
		if err != nil {
			s.logger.Error("failed to delete expired rows", "table", t.table, "error", err)
			continue
		}
		removed[t.table] = n
		if n > 0 {
			metrics.ExpiredRowsDeleted.WithLabelValues(t.table).Add(float64(n))
			s.logger.Debug("expired rows deleted", "table", t.table, "count", n)
		}
	}

	return removed
}
