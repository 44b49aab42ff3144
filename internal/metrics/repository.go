package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Querier is the read-only subset of the pgx pool used for gauge snapshots
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Snapshot holds the gauge values computed from the database
type Snapshot struct {
	OpenEvents      map[string]int
	ActiveIncidents int
}

// Repository reads the counts exported as gauges
type Repository struct {
	db Querier
}

// NewRepository creates a new metrics repository
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

// Snapshot counts open events per status and incidents still accepting samples
func (r *Repository) Snapshot(ctx context.Context, now time.Time) (*Snapshot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT status, COUNT(*)
		FROM emergency_events
		WHERE status IN ('INITIATED', 'IN_PROGRESS', 'SERVICES_CONTACTED')
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("count open events: %w", err)
	}
	defer rows.Close()

	snap := &Snapshot{OpenEvents: map[string]int{
		"INITIATED":          0,
		"IN_PROGRESS":        0,
		"SERVICES_CONTACTED": 0,
	}}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan open events: %w", err)
		}
		snap.OpenEvents[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open events: %w", err)
	}

	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM incidents WHERE status = 'ACTIVE' AND expires_at > $1`, now,
	).Scan(&snap.ActiveIncidents)
	if err != nil {
		return nil, fmt.Errorf("count active incidents: %w", err)
	}

	return snap, nil
}
