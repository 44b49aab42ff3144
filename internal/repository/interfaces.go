package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

// PgxPool is the subset of *pgxpool.Pool used by the repositories.
// pgxmock.PgxPoolIface satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AssessmentRepositoryInterface defines operations for assessment data access
type AssessmentRepositoryInterface interface {
	Create(ctx context.Context, a *domain.Assessment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Assessment, error)
	SaveResult(ctx context.Context, a *domain.Assessment, expected domain.AssessmentStatus) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.AssessmentStatus) error
	FalsePositiveRate(ctx context.Context, subjectID string, since time.Time) (rate float64, samples int, err error)
}

// EventRepositoryInterface defines operations for emergency event data access
type EventRepositoryInterface interface {
	CreateIfAbsent(ctx context.Context, event *domain.EmergencyEvent) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.EmergencyEvent, error)
	GetByAssessmentID(ctx context.Context, assessmentID uuid.UUID) (*domain.EmergencyEvent, error)
	Transition(ctx context.Context, id uuid.UUID, from, to domain.EventStatus, reason string) error
	MarkFalseAlarm(ctx context.Context, id uuid.UUID) error
	SetContactsNotified(ctx context.Context, id uuid.UUID, contacts []string) error
	ListTransitions(ctx context.Context, id uuid.UUID) ([]domain.EventTransition, error)
	ListOpenBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.EmergencyEvent, error)
}

// DeliveryRepositoryInterface defines operations for the notification ledger
type DeliveryRepositoryInterface interface {
	Append(ctx context.Context, record *domain.DeliveryRecord) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.DeliveryRecord, error)
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.DeliveryRecord, error)
}

// ContactRepositoryInterface defines read access to emergency contacts
type ContactRepositoryInterface interface {
	ListBySubject(ctx context.Context, subjectID string) ([]domain.Contact, error)
}

// IncidentRepositoryInterface defines operations for tracking incidents
type IncidentRepositoryInterface interface {
	Create(ctx context.Context, incident *domain.Incident) error
	GetByID(ctx context.Context, incidentID string) (*domain.Incident, error)
	GetByEventID(ctx context.Context, eventID uuid.UUID) (*domain.Incident, error)
	Close(ctx context.Context, incidentID string, at time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// LocationRepositoryInterface defines operations for the location trail
type LocationRepositoryInterface interface {
	Insert(ctx context.Context, sample *domain.LocationSample, now time.Time) (InsertOutcome, error)
	Latest(ctx context.Context, incidentID string, now time.Time) (*domain.LocationSample, error)
	Trail(ctx context.Context, incidentID string, now time.Time, limit int) ([]domain.LocationSample, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
