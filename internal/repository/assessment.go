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

const assessmentColumns = `id, subject_id, sensor_snapshot_ref, detection_type, threat_level, confidence,
	original_confidence, confidence_adjustment, rationale, keywords, status, source, oracle_error,
	latitude, longitude, accuracy_meters, place_name, created_at, updated_at`

type AssessmentRepository struct {
	pool PgxPool
}

func NewAssessmentRepository(pool PgxPool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

// Create persists a new assessment, normally in PENDING status
func (r *AssessmentRepository) Create(ctx context.Context, a *domain.Assessment) error {
	query := `
		INSERT INTO assessments (id, subject_id, sensor_snapshot_ref, detection_type, status,
			latitude, longitude, accuracy_meters, place_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Keywords == nil {
		a.Keywords = []string{}
	}

	err := r.pool.QueryRow(ctx, query,
		a.ID,
		a.SubjectID,
		a.SensorSnapshotRef,
		a.DetectionType,
		a.Status,
		a.Location.Latitude,
		a.Location.Longitude,
		a.Location.AccuracyMeters,
		a.Location.PlaceName,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create assessment: %w", err)
	}

	return nil
}

func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`

	a, err := scanAssessment(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAssessmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	return a, nil
}

// SaveResult writes the evaluation outcome if the row is still in the expected status
func (r *AssessmentRepository) SaveResult(ctx context.Context, a *domain.Assessment, expected domain.AssessmentStatus) error {
	query := `
		UPDATE assessments
		SET threat_level = $3, confidence = $4, original_confidence = $5, confidence_adjustment = $6,
			rationale = $7, keywords = $8, status = $9, source = $10, oracle_error = $11, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING updated_at
	`

	if a.Keywords == nil {
		a.Keywords = []string{}
	}

	err := r.pool.QueryRow(ctx, query,
		a.ID,
		expected,
		a.ThreatLevel,
		a.Confidence,
		a.OriginalConfidence,
		a.ConfidenceAdjustment,
		a.Rationale,
		a.Keywords,
		a.Status,
		a.Source,
		a.OracleError,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrInvalidTransition
	}
	if err != nil {
		return fmt.Errorf("save assessment result: %w", err)
	}

	return nil
}

// UpdateStatus is a compare-and-set on the assessment status
func (r *AssessmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.AssessmentStatus) error {
	if !from.CanTransition(to) {
		return domain.ErrInvalidTransition
	}

	query := `UPDATE assessments SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`

	result, err := r.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("update assessment status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}

	return nil
}

// FalsePositiveRate returns the share of the subject's confirmed assessments
// later flagged as false alarms, over the window starting at since.
func (r *AssessmentRepository) FalsePositiveRate(ctx context.Context, subjectID string, since time.Time) (float64, int, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'FALSE_POSITIVE'),
			COUNT(*) FILTER (WHERE status IN ('CONFIRMED', 'FALSE_POSITIVE'))
		FROM assessments
		WHERE subject_id = $1 AND created_at >= $2
	`

	var falsePositives, total int
	if err := r.pool.QueryRow(ctx, query, subjectID, since).Scan(&falsePositives, &total); err != nil {
		return 0, 0, fmt.Errorf("false positive rate: %w", err)
	}
	if total == 0 {
		return 0, 0, nil
	}

	return float64(falsePositives) / float64(total), total, nil
}

func scanAssessment(row pgx.Row) (*domain.Assessment, error) {
	var a domain.Assessment
	err := row.Scan(
		&a.ID,
		&a.SubjectID,
		&a.SensorSnapshotRef,
		&a.DetectionType,
		&a.ThreatLevel,
		&a.Confidence,
		&a.OriginalConfidence,
		&a.ConfidenceAdjustment,
		&a.Rationale,
		&a.Keywords,
		&a.Status,
		&a.Source,
		&a.OracleError,
		&a.Location.Latitude,
		&a.Location.Longitude,
		&a.Location.AccuracyMeters,
		&a.Location.PlaceName,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
