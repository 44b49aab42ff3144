package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
	"github.com/saturnino-fabrica-de-software/guardian/internal/metrics"
	"github.com/saturnino-fabrica-de-software/guardian/internal/webhook"
)

type ReceiptLedger interface {
	Append(ctx context.Context, record *domain.DeliveryRecord) error
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.DeliveryRecord, error)
}

// ReceiptProcessor appends provider delivery confirmations to the ledger.
type ReceiptProcessor struct {
	ledger ReceiptLedger
	logger *slog.Logger
	now    func() time.Time
}

func NewReceiptProcessor(ledger ReceiptLedger, logger *slog.Logger) *ReceiptProcessor {
	return &ReceiptProcessor{ledger: ledger, logger: logger, now: time.Now}
}

// Process records the receipt against the send it refers to. A repeated
// receipt with the same status is a no-op and returns the existing record.
func (p *ReceiptProcessor) Process(ctx context.Context, r *webhook.Receipt) (*domain.DeliveryRecord, error) {
	status, err := r.DeliveryStatus()
	if err != nil {
		return nil, domain.ErrValidationFailed.WithError(err)
	}

	latest, err := p.ledger.GetByProviderMessageID(ctx, r.ProviderMessageID)
	if err != nil {
		return nil, err
	}
	if latest.Status == status {
		return latest, nil
	}

	at := r.Timestamp
	if at.IsZero() {
		at = p.now()
	}

	rec := &domain.DeliveryRecord{
		ID:                uuid.New(),
		EmergencyEventID:  latest.EmergencyEventID,
		ContactID:         latest.ContactID,
		Channel:           latest.Channel,
		Status:            status,
		ProviderMessageID: r.ProviderMessageID,
		Attempt:           latest.Attempt,
		ErrorReason:       r.Reason,
		Timestamp:         at,
	}
	if status == domain.DeliveryDelivered {
		rec.ErrorReason = ""
	}

	if err := p.ledger.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("append receipt: %w", err)
	}
	metrics.ReceiptsTotal.WithLabelValues(string(status)).Inc()

	p.logger.Info("delivery receipt recorded",
		slog.String("event_id", rec.EmergencyEventID.String()),
		slog.String("contact_id", rec.ContactID.String()),
		slog.String("channel", string(rec.Channel)),
		slog.String("status", string(status)),
	)

	return rec, nil
}
