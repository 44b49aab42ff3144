package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/guardian/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/guardian/internal/assessment"
	"github.com/saturnino-fabrica-de-software/guardian/internal/audit"
	"github.com/saturnino-fabrica-de-software/guardian/internal/decision"
	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
	"github.com/saturnino-fabrica-de-software/guardian/internal/service"
)

// EmergencyService is the pipeline as seen by the HTTP layer
type EmergencyService interface {
	Evaluate(ctx context.Context, req assessment.Request) (*domain.Assessment, error)
	Trigger(ctx context.Context, req service.TriggerRequest) (*service.Outcome, error)
	Decide(ctx context.Context, assessmentID uuid.UUID, req service.DecideRequest) (*service.Outcome, error)
	Resolve(ctx context.Context, eventID uuid.UUID, reason string) (*domain.EmergencyEvent, error)
	Cancel(ctx context.Context, eventID uuid.UUID, reason string) (*domain.EmergencyEvent, error)
	MarkFalseAlarm(ctx context.Context, eventID uuid.UUID, reason string) (*domain.EmergencyEvent, error)
	Event(ctx context.Context, eventID uuid.UUID) (*service.EventDetails, error)
	Deliveries(ctx context.Context, eventID uuid.UUID) ([]domain.DeliveryRecord, error)
	OpenIncident(ctx context.Context, assessmentID uuid.UUID, subjectName string, initial domain.Location) (*domain.Incident, string, error)
}

// EmergencyHandler serves assessments, emergency events and incidents
type EmergencyHandler struct {
	service      EmergencyService
	timeout      time.Duration
	audit        audit.Logger
	trackingBase string
	logger       *slog.Logger
}

// NewEmergencyHandler bounds every pipeline call by timeout; zero disables it.
func NewEmergencyHandler(service EmergencyService, timeout time.Duration, logger *slog.Logger) *EmergencyHandler {
	return &EmergencyHandler{service: service, timeout: timeout, audit: &audit.NoOpLogger{}, logger: logger}
}

// WithAudit records operator actions to l.
func (h *EmergencyHandler) WithAudit(l audit.Logger) *EmergencyHandler {
	if l != nil {
		h.audit = l
	}
	return h
}

// WithTrackingBaseURL sets the viewer base the tracking suffix is built for.
func (h *EmergencyHandler) WithTrackingBaseURL(base string) *EmergencyHandler {
	h.trackingBase = base
	return h
}

func (h *EmergencyHandler) record(c *fiber.Ctx, event audit.Event, err error) {
	event.Success = err == nil
	if err != nil {
		event.Error = err.Error()
	}
	if key, ok := c.Locals(middleware.LocalOperatorKey).(string); ok {
		event.OperatorKey = key
	}
	event.IPAddress = c.IP()
	event.UserAgent = c.Get(fiber.HeaderUserAgent)

	if logErr := h.audit.Log(c.UserContext(), event); logErr != nil {
		h.logger.Warn("audit log failed",
			slog.String("event_type", string(event.EventType)),
			slog.String("error", logErr.Error()),
		)
	}
}

func outcomeAudit(eventType audit.EventType, out *service.Outcome) audit.Event {
	event := audit.Event{EventType: eventType}
	if out == nil {
		return event
	}
	if out.Assessment != nil {
		event.AssessmentID = out.Assessment.ID.String()
		event.Metadata = map[string]string{"threat_level": string(out.Assessment.ThreatLevel)}
	}
	if out.Event != nil {
		event.EmergencyID = out.Event.ID.String()
	}
	if out.Incident != nil {
		event.IncidentID = out.Incident.IncidentID
	}
	return event
}

// SnapshotRequest is the body of POST /v1/assessments
type SnapshotRequest struct {
	SubjectID   string                `json:"subject_id"`
	SnapshotRef string                `json:"snapshot_ref"`
	Snapshot    domain.SensorSnapshot `json:"snapshot"`
}

// TriggerRequest is the body of POST /v1/emergencies/trigger
type TriggerRequest struct {
	SnapshotRequest
	SubjectName string `json:"subject_name"`
}

// DecideRequest is the body of POST /v1/emergencies/:assessment_id/decide
type DecideRequest struct {
	SubjectName string                      `json:"subject_name"`
	LocalTime   *time.Time                  `json:"local_time,omitempty"`
	Environment *domain.EnvironmentFeatures `json:"environment,omitempty"`
	Motion      *domain.MotionFeatures      `json:"motion,omitempty"`
	Biometrics  *domain.Biometrics          `json:"biometrics,omitempty"`
}

// CloseRequest is the body of resolve, cancel and false-alarm
type CloseRequest struct {
	Reason string `json:"reason"`
}

// IncidentRequest is the body of POST /v1/incidents
type IncidentRequest struct {
	AssessmentID    string          `json:"assessment_id"`
	SubjectName     string          `json:"subject_name"`
	InitialLocation domain.Location `json:"initial_location"`
}

// IncidentResponse carries the incident and its public viewer link
type IncidentResponse struct {
	IncidentID        string           `json:"incident_id"`
	TrackingURL       string           `json:"tracking_url"`
	TrackingURLSuffix string           `json:"tracking_url_suffix"`
	Incident          *domain.Incident `json:"incident"`
}

// DeliveriesResponse lists the ledger of one event
type DeliveriesResponse struct {
	EventID    uuid.UUID               `json:"event_id"`
	Deliveries []domain.DeliveryRecord `json:"deliveries"`
}

func (h *EmergencyHandler) context(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.UserContext())
	}
	return context.WithTimeout(c.UserContext(), h.timeout)
}

// Assess POST /v1/assessments - evaluate a snapshot without deciding
func (h *EmergencyHandler) Assess(c *fiber.Ctx) error {
	var req SnapshotRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.context(c)
	defer cancel()

	a, err := h.service.Evaluate(ctx, assessment.Request{
		SubjectID:   strings.TrimSpace(req.SubjectID),
		SnapshotRef: req.SnapshotRef,
		Snapshot:    req.Snapshot,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(a)
}

// Trigger POST /v1/emergencies/trigger - run the whole pipeline
func (h *EmergencyHandler) Trigger(c *fiber.Ctx) error {
	var req TriggerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.context(c)
	defer cancel()

	out, err := h.service.Trigger(ctx, service.TriggerRequest{
		SubjectID:   strings.TrimSpace(req.SubjectID),
		SubjectName: strings.TrimSpace(req.SubjectName),
		SnapshotRef: req.SnapshotRef,
		Snapshot:    req.Snapshot,
	})
	h.record(c, outcomeAudit(audit.EventEmergencyTriggered, out), err)
	if err != nil {
		return err
	}

	status := fiber.StatusOK
	if out.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(out)
}

// Decide POST /v1/emergencies/:assessment_id/decide
func (h *EmergencyHandler) Decide(c *fiber.Ctx) error {
	assessmentID, err := uuidParam(c, "assessment_id")
	if err != nil {
		return err
	}

	var req DecideRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	dc := decision.Context{
		Environment: req.Environment,
		Motion:      req.Motion,
		Biometrics:  req.Biometrics,
	}
	if req.LocalTime != nil {
		dc.Now = *req.LocalTime
	}

	ctx, cancel := h.context(c)
	defer cancel()

	out, err := h.service.Decide(ctx, assessmentID, service.DecideRequest{
		SubjectName: strings.TrimSpace(req.SubjectName),
		Context:     dc,
	})
	decided := outcomeAudit(audit.EventEmergencyDecided, out)
	decided.AssessmentID = assessmentID.String()
	h.record(c, decided, err)
	if err != nil {
		return err
	}

	status := fiber.StatusOK
	if out.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(out)
}

// Resolve POST /v1/emergencies/:id/resolve
func (h *EmergencyHandler) Resolve(c *fiber.Ctx) error {
	return h.close(c, audit.EventEmergencyResolved, "resolved by operator", h.service.Resolve)
}

// Cancel POST /v1/emergencies/:id/cancel
func (h *EmergencyHandler) Cancel(c *fiber.Ctx) error {
	return h.close(c, audit.EventEmergencyCancelled, "cancelled by operator", h.service.Cancel)
}

// FalseAlarm POST /v1/emergencies/:id/false-alarm
func (h *EmergencyHandler) FalseAlarm(c *fiber.Ctx) error {
	return h.close(c, audit.EventEmergencyFalseAlarm, "reported as false alarm", h.service.MarkFalseAlarm)
}

type closeFunc func(ctx context.Context, eventID uuid.UUID, reason string) (*domain.EmergencyEvent, error)

func (h *EmergencyHandler) close(c *fiber.Ctx, action audit.EventType, defaultReason string, fn closeFunc) error {
	eventID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var req CloseRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = defaultReason
	}

	event, err := fn(c.UserContext(), eventID, reason)
	h.record(c, audit.Event{
		EventType:   action,
		EmergencyID: eventID.String(),
		Metadata:    map[string]string{"reason": reason},
	}, err)
	if err != nil {
		return err
	}

	h.logger.Info("emergency event closed",
		slog.String("event_id", eventID.String()),
		slog.String("status", string(event.Status)),
		slog.String("reason", reason),
	)

	return c.JSON(event)
}

// Get GET /v1/emergencies/:id - event with its transitions
func (h *EmergencyHandler) Get(c *fiber.Ctx) error {
	eventID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	details, err := h.service.Event(c.UserContext(), eventID)
	if err != nil {
		return err
	}

	return c.JSON(details)
}

// Deliveries GET /v1/emergencies/:id/deliveries
func (h *EmergencyHandler) Deliveries(c *fiber.Ctx) error {
	eventID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	records, err := h.service.Deliveries(c.UserContext(), eventID)
	if err != nil {
		return err
	}
	if records == nil {
		records = []domain.DeliveryRecord{}
	}

	return c.JSON(DeliveriesResponse{EventID: eventID, Deliveries: records})
}

// OpenIncident POST /v1/incidents - idempotent per emergency event
func (h *EmergencyHandler) OpenIncident(c *fiber.Ctx) error {
	var req IncidentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	assessmentID, err := uuid.Parse(req.AssessmentID)
	if err != nil {
		return domain.ErrValidationFailed.WithError(errors.New("assessment_id must be a UUID"))
	}
	if !req.InitialLocation.IsZero() {
		if err := req.InitialLocation.Validate(); err != nil {
			return err
		}
	}

	incident, trackingURL, err := h.service.OpenIncident(c.UserContext(), assessmentID, strings.TrimSpace(req.SubjectName), req.InitialLocation)
	opened := audit.Event{EventType: audit.EventIncidentOpened, AssessmentID: assessmentID.String()}
	if incident != nil {
		opened.IncidentID = incident.IncidentID
	}
	h.record(c, opened, err)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(IncidentResponse{
		IncidentID:        incident.IncidentID,
		TrackingURL:       trackingURL,
		TrackingURLSuffix: domain.TrackingQuery(h.trackingBase, incident.IncidentID),
		Incident:          incident,
	})
}
