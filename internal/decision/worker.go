package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

const timeoutBatchSize = 100

// OpenEventLister finds events still open past a cutoff.
type OpenEventLister interface {
	ListOpenBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.EmergencyEvent, error)
}

// Resolver closes an event along with anything attached to it.
type Resolver interface {
	Resolve(ctx context.Context, eventID uuid.UUID, reason string) (*domain.EmergencyEvent, error)
}

// TimeoutWorker resolves events nobody closed within the allowed window
type TimeoutWorker struct {
	events   OpenEventLister
	resolver Resolver
	after    time.Duration
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
	done     chan struct{}
}

// NewTimeoutWorker creates the auto-resolve worker. Events older than after
// are resolved on every tick.
func NewTimeoutWorker(events OpenEventLister, resolver Resolver, after, interval time.Duration, logger *slog.Logger) *TimeoutWorker {
	if interval == 0 {
		interval = 5 * time.Minute
	}

	return &TimeoutWorker{
		events:   events,
		resolver: resolver,
		after:    after,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start runs the worker until ctx is done or Stop is called
func (w *TimeoutWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("event timeout worker started", "interval", w.interval, "resolve_after", w.after)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("event timeout worker stopped")
			return
		case <-w.done:
			w.logger.Info("event timeout worker stopped")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("event timeout sweep failed", "error", err)
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *TimeoutWorker) Stop() {
	close(w.done)
}

// RunOnce resolves one batch of overdue events and returns how many were closed.
func (w *TimeoutWorker) RunOnce(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.after)

	events, err := w.events.ListOpenBefore(ctx, cutoff, timeoutBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list overdue events: %w", err)
	}

	resolved := 0
	reason := fmt.Sprintf("auto-resolved after %s without operator action", w.after)
	for _, ev := range events {
		if _, err := w.resolver.Resolve(ctx, ev.ID, reason); err != nil {
			// someone else closed it between the list and the update
			if errors.Is(err, domain.ErrInvalidTransition) {
				continue
			}
			w.logger.Warn("failed to auto-resolve event",
				"error", err,
				"event_id", ev.ID,
			)
			continue
		}
		resolved++
	}

	if resolved > 0 {
		w.logger.Info("overdue events resolved", "count", resolved)
	}
	return resolved, nil
}
