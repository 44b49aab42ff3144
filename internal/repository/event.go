package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

const eventColumns = `id, assessment_id, subject_id, status, priority, threat_level, detection_type,
	latitude, longitude, accuracy_meters, place_name, contacts_notified, decision_rationale,
	response_plan, false_alarm, created_at, updated_at, resolved_at`

type EventRepository struct {
	pool PgxPool
}

func NewEventRepository(pool PgxPool) *EventRepository {
	return &EventRepository{pool: pool}
}

// CreateIfAbsent inserts the event unless one already exists for the same
// assessment. The insert and the INITIATED/IN_PROGRESS history rows commit
// together. When the assessment already has an event, that event is loaded
// into the argument and false is returned.
func (r *EventRepository) CreateIfAbsent(ctx context.Context, event *domain.EmergencyEvent) (bool, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.ContactsNotified == nil {
		event.ContactsNotified = []string{}
	}

	plan, err := json.Marshal(event.Plan)
	if err != nil {
		return false, fmt.Errorf("marshal response plan: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insert := `
		INSERT INTO emergency_events (id, assessment_id, subject_id, status, priority, threat_level,
			detection_type, latitude, longitude, accuracy_meters, place_name, contacts_notified,
			decision_rationale, response_plan, false_alarm, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, false, NOW(), NOW())
		ON CONFLICT (assessment_id) DO NOTHING
		RETURNING created_at, updated_at
	`

	err = tx.QueryRow(ctx, insert,
		event.ID,
		event.AssessmentID,
		event.SubjectID,
		domain.EventInProgress,
		event.Priority,
		event.ThreatLevel,
		event.DetectionType,
		event.Location.Latitude,
		event.Location.Longitude,
		event.Location.AccuracyMeters,
		event.Location.PlaceName,
		event.ContactsNotified,
		event.DecisionRationale,
		plan,
	).Scan(&event.CreatedAt, &event.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		_ = tx.Rollback(ctx)

		existing, getErr := r.GetByAssessmentID(ctx, event.AssessmentID)
		if getErr != nil {
			return false, getErr
		}
		*event = *existing
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert emergency event: %w", err)
	}

	history := `
		INSERT INTO emergency_event_transitions (event_id, from_status, to_status, reason, created_at)
		VALUES ($1, '', $2, $3, $5), ($1, $2, $4, $3, $5)
	`
	if _, err := tx.Exec(ctx, history, event.ID, domain.EventInitiated, event.DecisionRationale, domain.EventInProgress, event.CreatedAt); err != nil {
		return false, fmt.Errorf("insert event history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit emergency event: %w", err)
	}

	event.Status = domain.EventInProgress
	return true, nil
}

func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.EmergencyEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM emergency_events WHERE id = $1`

	event, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get emergency event: %w", err)
	}

	return event, nil
}

func (r *EventRepository) GetByAssessmentID(ctx context.Context, assessmentID uuid.UUID) (*domain.EmergencyEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM emergency_events WHERE assessment_id = $1`

	event, err := scanEvent(r.pool.QueryRow(ctx, query, assessmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get emergency event by assessment: %w", err)
	}

	return event, nil
}

// Transition moves the event from one status to another with a
// compare-and-set update and appends the history row. A concurrent change
// makes the update miss and ErrInvalidTransition is returned.
func (r *EventRepository) Transition(ctx context.Context, id uuid.UUID, from, to domain.EventStatus, reason string) error {
	if !from.CanTransition(to) {
		return domain.ErrInvalidTransition
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	update := `
		UPDATE emergency_events
		SET status = $3,
			updated_at = NOW(),
			resolved_at = CASE WHEN $4 THEN NOW() ELSE resolved_at END
		WHERE id = $1 AND status = $2
	`
	result, err := tx.Exec(ctx, update, id, from, to, to.IsTerminal())
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}

	history := `
		INSERT INTO emergency_event_transitions (event_id, from_status, to_status, reason)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.Exec(ctx, history, id, from, to, reason); err != nil {
		return fmt.Errorf("insert event history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}

	return nil
}

// MarkFalseAlarm flags an open event as a false alarm
func (r *EventRepository) MarkFalseAlarm(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE emergency_events
		SET false_alarm = true, updated_at = NOW()
		WHERE id = $1 AND status IN ($2, $3) AND false_alarm = false
	`

	result, err := r.pool.Exec(ctx, query, id, domain.EventInProgress, domain.EventServicesContacted)
	if err != nil {
		return fmt.Errorf("mark false alarm: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}

	return nil
}

func (r *EventRepository) SetContactsNotified(ctx context.Context, id uuid.UUID, contacts []string) error {
	query := `UPDATE emergency_events SET contacts_notified = $2, updated_at = NOW() WHERE id = $1`

	if contacts == nil {
		contacts = []string{}
	}

	result, err := r.pool.Exec(ctx, query, id, contacts)
	if err != nil {
		return fmt.Errorf("set contacts notified: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}

	return nil
}

func (r *EventRepository) ListTransitions(ctx context.Context, id uuid.UUID) ([]domain.EventTransition, error) {
	query := `
		SELECT event_id, from_status, to_status, reason, created_at
		FROM emergency_event_transitions
		WHERE event_id = $1
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("list event transitions: %w", err)
	}
	defer rows.Close()

	var transitions []domain.EventTransition
	for rows.Next() {
		var t domain.EventTransition
		if err := rows.Scan(&t.EventID, &t.From, &t.To, &t.Reason, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event transition: %w", err)
		}
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event transitions: %w", err)
	}

	return transitions, nil
}

// ListOpenBefore returns open events that have not changed since cutoff
func (r *EventRepository) ListOpenBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.EmergencyEvent, error) {
	query := `SELECT ` + eventColumns + `
		FROM emergency_events
		WHERE status IN ('INITIATED', 'IN_PROGRESS', 'SERVICES_CONTACTED') AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list open events: %w", err)
	}
	defer rows.Close()

	var events []domain.EmergencyEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan emergency event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open events: %w", err)
	}

	return events, nil
}

func scanEvent(row pgx.Row) (*domain.EmergencyEvent, error) {
	var (
		event domain.EmergencyEvent
		plan  []byte
	)
	err := row.Scan(
		&event.ID,
		&event.AssessmentID,
		&event.SubjectID,
		&event.Status,
		&event.Priority,
		&event.ThreatLevel,
		&event.DetectionType,
		&event.Location.Latitude,
		&event.Location.Longitude,
		&event.Location.AccuracyMeters,
		&event.Location.PlaceName,
		&event.ContactsNotified,
		&event.DecisionRationale,
		&plan,
		&event.FalseAlarm,
		&event.CreatedAt,
		&event.UpdatedAt,
		&event.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(plan) > 0 {
		if err := json.Unmarshal(plan, &event.Plan); err != nil {
			return nil, fmt.Errorf("decode response plan: %w", err)
		}
	}

	return &event, nil
}
