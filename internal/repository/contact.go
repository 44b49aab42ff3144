package repository

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

type ContactRepository struct {
	pool PgxPool
}

func NewContactRepository(pool PgxPool) *ContactRepository {
	return &ContactRepository{pool: pool}
}

// ListBySubject returns the subject's contacts, lowest priority number first
func (r *ContactRepository) ListBySubject(ctx context.Context, subjectID string) ([]domain.Contact, error) {
	query := `
		SELECT id, subject_id, name, relationship, phone, email, preferred_channel, fallback_channel,
			priority, is_services, consent_granted_at, consent_expires_at, created_at
		FROM contacts
		WHERE subject_id = $1
		ORDER BY priority ASC, name ASC
	`

	rows, err := r.pool.Query(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]domain.Contact, 0)
	for rows.Next() {
		var c domain.Contact
		err := rows.Scan(
			&c.ID,
			&c.SubjectID,
			&c.Name,
			&c.Relationship,
			&c.Phone,
			&c.Email,
			&c.PreferredChannel,
			&c.FallbackChannel,
			&c.Priority,
			&c.IsServices,
			&c.ConsentGrantedAt,
			&c.ConsentExpiresAt,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}

	return contacts, nil
}
