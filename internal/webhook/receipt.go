package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

// Receipt is a provider's report on a message we sent
type Receipt struct {
	ProviderMessageID string    `json:"provider_message_id"`
	Status            string    `json:"status"`
	Reason            string    `json:"reason,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// DeliveryStatus maps the provider status onto the ledger statuses.
func (r *Receipt) DeliveryStatus() (domain.DeliveryStatus, error) {
	switch strings.ToUpper(r.Status) {
	case "DELIVERED", "SUCCESSFUL", "COMPLETED", "ANSWERED":
		return domain.DeliveryDelivered, nil
	case "FAILED", "UNDELIVERABLE", "REJECTED", "BLOCKED", "NO_ANSWER", "BUSY":
		return domain.DeliveryFailed, nil
	default:
		return "", fmt.Errorf("unknown receipt status %q", r.Status)
	}
}

// ParseReceipt verifies the signature and decodes the body.
func ParseReceipt(secret string, body []byte, signature string) (*Receipt, error) {
	if !Verify(secret, body, signature) {
		return nil, domain.ErrInvalidSignature
	}

	var r Receipt
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, domain.ErrBadRequest.WithError(fmt.Errorf("decode receipt: %w", err))
	}
	if r.ProviderMessageID == "" {
		return nil, domain.ErrValidationFailed.WithError(errors.New("provider_message_id is required"))
	}
	if _, err := r.DeliveryStatus(); err != nil {
		return nil, domain.ErrValidationFailed.WithError(err)
	}

	return &r, nil
}
