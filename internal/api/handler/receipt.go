package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
	"github.com/saturnino-fabrica-de-software/guardian/internal/webhook"
)

type ReceiptProcessor interface {
	Process(ctx context.Context, r *webhook.Receipt) (*domain.DeliveryRecord, error)
}

// ReceiptHandler accepts signed delivery confirmations from providers
type ReceiptHandler struct {
	secret    string
	processor ReceiptProcessor
	logger    *slog.Logger
}

func NewReceiptHandler(secret string, processor ReceiptProcessor, logger *slog.Logger) *ReceiptHandler {
	return &ReceiptHandler{secret: secret, processor: processor, logger: logger}
}

// Receive POST /v1/notifications/receipts
func (h *ReceiptHandler) Receive(c *fiber.Ctx) error {
	receipt, err := webhook.ParseReceipt(h.secret, c.Body(), c.Get(webhook.SignatureHeader))
	if err != nil {
		h.logger.Warn("receipt rejected",
			slog.String("ip", c.IP()),
			slog.Any("error", err),
		)
		return err
	}

	record, err := h.processor.Process(c.UserContext(), receipt)
	if err != nil {
		return err
	}

	return c.JSON(record)
}
