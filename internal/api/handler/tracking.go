package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
	"github.com/saturnino-fabrica-de-software/guardian/internal/tracking"
)

type LocationTracker interface {
	RecordSample(ctx context.Context, incidentID string, sample domain.LocationSample) (*tracking.RecordResult, error)
	Latest(ctx context.Context, incidentID string) (*tracking.View, error)
	Trail(ctx context.Context, incidentID string, limit int) ([]domain.LocationSample, error)
}

// TrackingHandler serves the device uplink and the responder viewer. The
// incident id in the path is the only credential.
type TrackingHandler struct {
	tracker LocationTracker
	logger  *slog.Logger
}

func NewTrackingHandler(tracker LocationTracker, logger *slog.Logger) *TrackingHandler {
	return &TrackingHandler{tracker: tracker, logger: logger}
}

// LocationRequest is a single device fix
type LocationRequest struct {
	Timestamp      *time.Time `json:"timestamp"`
	Latitude       *float64   `json:"latitude"`
	Longitude      *float64   `json:"longitude"`
	AccuracyMeters float64    `json:"accuracy_meters"`
	Speed          *float64   `json:"speed,omitempty"`
	Heading        *float64   `json:"heading,omitempty"`
	BatteryPercent *int       `json:"battery_percent,omitempty"`
}

// HistoryResponse is the trail in ascending time order
type HistoryResponse struct {
	IncidentID string                  `json:"incident_id"`
	Samples    []domain.LocationSample `json:"samples"`
}

// UpdateLocation POST /v1/tracking/:incident_id/location
func (h *TrackingHandler) UpdateLocation(c *fiber.Ctx) error {
	var req LocationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Latitude == nil || req.Longitude == nil {
		return domain.ErrValidationFailed.WithError(errors.New("latitude and longitude are required"))
	}
	if req.Timestamp == nil {
		return domain.ErrValidationFailed.WithError(errors.New("timestamp is required"))
	}

	incidentID := c.Params("incident_id")
	result, err := h.tracker.RecordSample(c.UserContext(), incidentID, domain.LocationSample{
		Timestamp:      *req.Timestamp,
		Latitude:       *req.Latitude,
		Longitude:      *req.Longitude,
		AccuracyMeters: req.AccuracyMeters,
		Speed:          req.Speed,
		Heading:        req.Heading,
		BatteryPercent: req.BatteryPercent,
	})
	if err != nil {
		return err
	}

	status := fiber.StatusCreated
	if result.Status == "duplicate" {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(result)
}

// GetLocation GET /v1/tracking/:incident_id/location
func (h *TrackingHandler) GetLocation(c *fiber.Ctx) error {
	view, err := h.tracker.Latest(c.UserContext(), c.Params("incident_id"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(view)
}

// History GET /v1/tracking/:incident_id/history?limit=N
func (h *TrackingHandler) History(c *fiber.Ctx) error {
	incidentID := c.Params("incident_id")
	limit := c.QueryInt("limit", 0)

	samples, err := h.tracker.Trail(c.UserContext(), incidentID, limit)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(HistoryResponse{IncidentID: incidentID, Samples: samples})
}
