package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

const deliveryColumns = `id, emergency_event_id, contact_id, channel, status, provider_message_id, attempt, error_reason, created_at`

// DeliveryRepository is the append-only notification ledger
type DeliveryRepository struct {
	pool PgxPool
}

func NewDeliveryRepository(pool PgxPool) *DeliveryRepository {
	return &DeliveryRepository{pool: pool}
}

func (r *DeliveryRepository) Append(ctx context.Context, record *domain.DeliveryRecord) error {
	query := `
		INSERT INTO delivery_records (id, emergency_event_id, contact_id, channel, status,
			provider_message_id, attempt, error_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING created_at
	`

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query,
		record.ID,
		record.EmergencyEventID,
		record.ContactID,
		record.Channel,
		record.Status,
		record.ProviderMessageID,
		record.Attempt,
		record.ErrorReason,
	).Scan(&record.Timestamp)
	if err != nil {
		return fmt.Errorf("append delivery record: %w", err)
	}

	return nil
}

func (r *DeliveryRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.DeliveryRecord, error) {
	query := `SELECT ` + deliveryColumns + `
		FROM delivery_records
		WHERE emergency_event_id = $1
		ORDER BY created_at ASC, attempt ASC
	`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list delivery records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.DeliveryRecord, 0)
	for rows.Next() {
		rec, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery records: %w", err)
	}

	return records, nil
}

// GetByProviderMessageID returns the newest record carrying the provider's message id
func (r *DeliveryRepository) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.DeliveryRecord, error) {
	query := `SELECT ` + deliveryColumns + `
		FROM delivery_records
		WHERE provider_message_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	rec, err := scanDelivery(r.pool.QueryRow(ctx, query, providerMessageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDeliveryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery by provider message: %w", err)
	}

	return rec, nil
}

func scanDelivery(row pgx.Row) (*domain.DeliveryRecord, error) {
	var rec domain.DeliveryRecord
	err := row.Scan(
		&rec.ID,
		&rec.EmergencyEventID,
		&rec.ContactID,
		&rec.Channel,
		&rec.Status,
		&rec.ProviderMessageID,
		&rec.Attempt,
		&rec.ErrorReason,
		&rec.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
