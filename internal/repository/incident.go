package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

const incidentColumns = `incident_id, emergency_event_id, subject_name, detection_type, latitude, longitude,
	accuracy_meters, place_name, status, created_at, expires_at, closed_at`

type IncidentRepository struct {
	pool PgxPool
}

func NewIncidentRepository(pool PgxPool) *IncidentRepository {
	return &IncidentRepository{pool: pool}
}

// Create inserts the incident. An event has at most one incident: when it
// already has one, ErrIncidentExists is returned and nothing is written. A
// clash on the public id returns ErrIncidentIDTaken.
func (r *IncidentRepository) Create(ctx context.Context, incident *domain.Incident) error {
	query := `
		INSERT INTO incidents (incident_id, emergency_event_id, subject_name, detection_type, latitude,
			longitude, accuracy_meters, place_name, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (emergency_event_id) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query,
		incident.IncidentID,
		incident.EmergencyEventID,
		incident.SubjectName,
		incident.DetectionType,
		incident.InitialLocation.Latitude,
		incident.InitialLocation.Longitude,
		incident.InitialLocation.AccuracyMeters,
		incident.InitialLocation.PlaceName,
		incident.Status,
		incident.CreatedAt,
		incident.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIncidentIDTaken
		}
		return fmt.Errorf("create incident: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrIncidentExists
	}

	return nil
}

func (r *IncidentRepository) GetByID(ctx context.Context, incidentID string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE incident_id = $1`

	incident, err := scanIncident(r.pool.QueryRow(ctx, query, incidentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrIncidentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get incident: %w", err)
	}

	return incident, nil
}

func (r *IncidentRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + `
		FROM incidents
		WHERE emergency_event_id = $1
	`

	incident, err := scanIncident(r.pool.QueryRow(ctx, query, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrIncidentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get incident by event: %w", err)
	}

	return incident, nil
}

// Close marks the incident CLOSED. Closing twice keeps the first closed_at.
func (r *IncidentRepository) Close(ctx context.Context, incidentID string, at time.Time) error {
	query := `
		UPDATE incidents
		SET status = $2, closed_at = COALESCE(closed_at, $3)
		WHERE incident_id = $1
	`

	result, err := r.pool.Exec(ctx, query, incidentID, domain.IncidentClosed, at)
	if err != nil {
		return fmt.Errorf("close incident: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrIncidentNotFound
	}

	return nil
}

func (r *IncidentRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM incidents WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired incidents: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var i domain.Incident
	err := row.Scan(
		&i.IncidentID,
		&i.EmergencyEventID,
		&i.SubjectName,
		&i.DetectionType,
		&i.InitialLocation.Latitude,
		&i.InitialLocation.Longitude,
		&i.InitialLocation.AccuracyMeters,
		&i.InitialLocation.PlaceName,
		&i.Status,
		&i.CreatedAt,
		&i.ExpiresAt,
		&i.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}
