package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

// InsertOutcome tells the caller what happened to a location write
type InsertOutcome int

const (
	SampleInserted InsertOutcome = iota
	// SampleDuplicate means a sample with the same timestamp is already stored.
	SampleDuplicate
	// SampleStale means a newer live sample exists.
	SampleStale
)

const sampleColumns = `incident_id, ts, latitude, longitude, accuracy_meters, speed, heading, battery_percent, ttl_at`

// LocationRepository stores the location trail as rows with a TTL column.
// Readers skip rows past ttl_at; the sweeper deletes them later.
type LocationRepository struct {
	pool PgxPool
}

func NewLocationRepository(pool PgxPool) *LocationRepository {
	return &LocationRepository{pool: pool}
}

// Insert writes the sample unless a newer live sample already exists. The
// check and the insert are a single statement, so concurrent writers cannot
// interleave an older fix after a newer one.
func (r *LocationRepository) Insert(ctx context.Context, sample *domain.LocationSample, now time.Time) (InsertOutcome, error) {
	query := `
		INSERT INTO location_samples (` + sampleColumns + `)
		SELECT $1::varchar, $2::timestamptz, $3::float8, $4::float8, $5::float8, $6::float8, $7::float8, $8::int, $9::timestamptz
		WHERE NOT EXISTS (
			SELECT 1 FROM location_samples
			WHERE incident_id = $1 AND ts > $2 AND ttl_at > $10
		)
		ON CONFLICT (incident_id, ts) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query,
		sample.IncidentID,
		sample.Timestamp,
		sample.Latitude,
		sample.Longitude,
		sample.AccuracyMeters,
		sample.Speed,
		sample.Heading,
		sample.BatteryPercent,
		sample.TTLAt,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert location sample: %w", err)
	}
	if result.RowsAffected() == 1 {
		return SampleInserted, nil
	}

	var exists bool
	err = r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM location_samples WHERE incident_id = $1 AND ts = $2)`,
		sample.IncidentID, sample.Timestamp,
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check location sample: %w", err)
	}
	if exists {
		return SampleDuplicate, nil
	}

	return SampleStale, nil
}

// Latest returns the newest live sample
func (r *LocationRepository) Latest(ctx context.Context, incidentID string, now time.Time) (*domain.LocationSample, error) {
	query := `SELECT ` + sampleColumns + `
		FROM location_samples
		WHERE incident_id = $1 AND ttl_at > $2
		ORDER BY ts DESC
		LIMIT 1
	`

	sample, err := scanSample(r.pool.QueryRow(ctx, query, incidentID, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest location sample: %w", err)
	}

	return sample, nil
}

// Trail returns the last limit live samples in ascending timestamp order
func (r *LocationRepository) Trail(ctx context.Context, incidentID string, now time.Time, limit int) ([]domain.LocationSample, error) {
	query := `
		SELECT ` + sampleColumns + ` FROM (
			SELECT ` + sampleColumns + `
			FROM location_samples
			WHERE incident_id = $1 AND ttl_at > $2
			ORDER BY ts DESC
			LIMIT $3
		) recent
		ORDER BY ts ASC
	`

	rows, err := r.pool.Query(ctx, query, incidentID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("location trail: %w", err)
	}
	defer rows.Close()

	samples := make([]domain.LocationSample, 0, limit)
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location sample: %w", err)
		}
		samples = append(samples, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate location trail: %w", err)
	}

	return samples, nil
}

func (r *LocationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM location_samples WHERE ttl_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired samples: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanSample(row pgx.Row) (*domain.LocationSample, error) {
	var s domain.LocationSample
	err := row.Scan(
		&s.IncidentID,
		&s.Timestamp,
		&s.Latitude,
		&s.Longitude,
		&s.AccuracyMeters,
		&s.Speed,
		&s.Heading,
		&s.BatteryPercent,
		&s.TTLAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
