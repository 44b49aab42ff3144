package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/guardian/internal/assessment"
	"github.com/saturnino-fabrica-de-software/guardian/internal/decision"
	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
	"github.com/saturnino-fabrica-de-software/guardian/internal/notification"
	"github.com/saturnino-fabrica-de-software/guardian/internal/tracking"
)

type Evaluator interface {
	Evaluate(ctx context.Context, req assessment.Request) (*domain.Assessment, error)
}

type Decider interface {
	Decide(ctx context.Context, a *domain.Assessment, dc decision.Context) (*domain.EmergencyEvent, bool, error)
	MarkServicesContacted(ctx context.Context, eventID uuid.UUID, successes int) error
	Resolve(ctx context.Context, eventID uuid.UUID, reason string) (*domain.EmergencyEvent, error)
	Cancel(ctx context.Context, eventID uuid.UUID, reason string) (*domain.EmergencyEvent, error)
	MarkFalseAlarm(ctx context.Context, eventID uuid.UUID, reason string) (*domain.EmergencyEvent, error)
}

type Notifier interface {
	Notify(ctx context.Context, n notification.Notice) *notification.Result
}

type Tracker interface {
	CreateIncident(ctx context.Context, req tracking.CreateIncidentRequest) (*domain.Incident, string, error)
	TrackingURL(incidentID string) string
	Close(ctx context.Context, incidentID string) error
}

type AssessmentReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Assessment, error)
}

type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.EmergencyEvent, error)
	GetByAssessmentID(ctx context.Context, assessmentID uuid.UUID) (*domain.EmergencyEvent, error)
	SetContactsNotified(ctx context.Context, id uuid.UUID, contacts []string) error
	ListTransitions(ctx context.Context, id uuid.UUID) ([]domain.EventTransition, error)
}

type IncidentFinder interface {
	GetByEventID(ctx context.Context, eventID uuid.UUID) (*domain.Incident, error)
}

type ContactLister interface {
	ListBySubject(ctx context.Context, subjectID string) ([]domain.Contact, error)
}

type DeliveryLister interface {
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.DeliveryRecord, error)
}

// TriggerRequest carries one sensor snapshot through the whole pipeline
type TriggerRequest struct {
	SubjectID   string
	SubjectName string
	SnapshotRef string
	Snapshot    domain.SensorSnapshot
}

// DecideRequest asks for a decision on an assessment evaluated earlier.
type DecideRequest struct {
	SubjectName string
	Context     decision.Context
}

// Outcome is what a trigger or decision produced. Event and Incident stay
// nil when the assessment did not confirm an emergency.
type Outcome struct {
	Assessment    *domain.Assessment     `json:"assessment"`
	Event         *domain.EmergencyEvent `json:"event,omitempty"`
	Created       bool                   `json:"created"`
	Incident      *domain.Incident       `json:"incident,omitempty"`
	TrackingURL   string                 `json:"tracking_url,omitempty"`
	Notifications *notification.Result   `json:"notifications,omitempty"`
}

// EventDetails is an event with its audit trail
type EventDetails struct {
	Event       *domain.EmergencyEvent   `json:"event"`
	Transitions []domain.EventTransition `json:"transitions"`
	Incident    *domain.Incident         `json:"incident,omitempty"`
}

// EmergencyService drives a confirmed assessment to an event, a tracking
// incident and a notification fan-out.
type EmergencyService struct {
	evaluator   Evaluator
	decider     Decider
	notifier    Notifier
	tracker     Tracker
	assessments AssessmentReader
	events      EventStore
	incidents   IncidentFinder
	contacts    ContactLister
	deliveries  DeliveryLister
	logger      *slog.Logger
	now         func() time.Time
}

// Deps groups the collaborators of EmergencyService.
type Deps struct {
	Evaluator   Evaluator
	Decider     Decider
	Notifier    Notifier
	Tracker     Tracker
	Assessments AssessmentReader
	Events      EventStore
	Incidents   IncidentFinder
	Contacts    ContactLister
	Deliveries  DeliveryLister
}

func NewEmergencyService(d Deps, logger *slog.Logger) *EmergencyService {
	return &EmergencyService{
		evaluator:   d.Evaluator,
		decider:     d.Decider,
		notifier:    d.Notifier,
		tracker:     d.Tracker,
		assessments: d.Assessments,
		events:      d.Events,
		incidents:   d.Incidents,
		contacts:    d.Contacts,
		deliveries:  d.Deliveries,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock replaces the clock used for decision context.
func (s *EmergencyService) WithClock(now func() time.Time) *EmergencyService {
	s.now = now
	return s
}

// Evaluate runs the assessment only.
func (s *EmergencyService) Evaluate(ctx context.Context, req assessment.Request) (*domain.Assessment, error) {
	return s.evaluator.Evaluate(ctx, req)
}

// Trigger evaluates the snapshot and, when the assessment is confirmed,
// opens the emergency. Notification failures never fail the call.
func (s *EmergencyService) Trigger(ctx context.Context, req TriggerRequest) (*Outcome, error) {
	a, err := s.evaluator.Evaluate(ctx, assessment.Request{
		SubjectID:   req.SubjectID,
		SnapshotRef: req.SnapshotRef,
		Snapshot:    req.Snapshot,
	})
	if err != nil {
		return nil, err
	}

	if a.Status != domain.AssessmentConfirmed {
		return &Outcome{Assessment: a}, nil
	}

	return s.respond(ctx, a, req.SubjectName, decision.ContextFromSnapshot(s.now(), req.Snapshot))
}

// Decide opens the emergency for an assessment evaluated earlier. Repeated
// calls return the existing event without notifying again.
func (s *EmergencyService) Decide(ctx context.Context, assessmentID uuid.UUID, req DecideRequest) (*Outcome, error) {
	a, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	dc := req.Context
	if dc.Now.IsZero() {
		dc.Now = s.now()
	}
	return s.respond(ctx, a, req.SubjectName, dc)
}

func (s *EmergencyService) respond(ctx context.Context, a *domain.Assessment, subjectName string, dc decision.Context) (*Outcome, error) {
	event, created, err := s.decider.Decide(ctx, a, dc)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Assessment: a, Event: event, Created: created}

	if !created {
		incident, err := s.incidents.GetByEventID(ctx, event.ID)
		switch {
		case err == nil:
			out.Incident = incident
			out.TrackingURL = s.tracker.TrackingURL(incident.IncidentID)
		case !errors.Is(err, domain.ErrIncidentNotFound):
			return nil, fmt.Errorf("event %s: %w", event.ID, err)
		}
		return out, nil
	}

	if subjectName == "" {
		subjectName = a.SubjectID
	}

	incident, link, err := s.tracker.CreateIncident(ctx, tracking.CreateIncidentRequest{
		EmergencyEventID: event.ID,
		SubjectName:      subjectName,
		InitialLocation:  event.Location,
		DetectionType:    event.DetectionType,
	})
	if err != nil {
		// contacts are still notified, only without a live link
		s.logger.Error("failed to open tracking incident",
			slog.String("event_id", event.ID.String()),
			slog.Any("error", err),
		)
	} else {
		out.Incident = incident
		out.TrackingURL = link
	}

	contacts, err := s.contacts.ListBySubject(ctx, a.SubjectID)
	if err != nil {
		s.logger.Error("failed to load contacts",
			slog.String("event_id", event.ID.String()),
			slog.String("subject_id", a.SubjectID),
			slog.Any("error", err),
		)
		contacts = nil
	}

	out.Notifications = s.notifier.Notify(ctx, notification.Notice{
		Event:    event,
		Incident: out.Incident,
		Contacts: contacts,
		Keywords: a.Keywords,
	})

	if out.Notifications.SuccessfulNotifications > 0 {
		if err := s.recordNotified(ctx, event.ID, out.Notifications); err != nil {
			s.logger.Error("failed to record notified contacts",
				slog.String("event_id", event.ID.String()),
				slog.Any("error", err),
			)
		} else {
			event.Status = domain.EventServicesContacted
			event.ContactsNotified = out.Notifications.NotifiedContacts
		}
	}

	return out, nil
}

// NotificationsCompleted is the orchestrator's completion callback for
// sends that outlived the fan-out timeout.
func (s *EmergencyService) NotificationsCompleted(ctx context.Context, event *domain.EmergencyEvent, final *notification.Result) {
	if final.SuccessfulNotifications == 0 {
		s.logger.Warn("no contact reached after late notifications", slog.String("event_id", event.ID.String()))
		return
	}
	if err := s.recordNotified(ctx, event.ID, final); err != nil {
		s.logger.Error("failed to record late notifications",
			slog.String("event_id", event.ID.String()),
			slog.Any("error", err),
		)
	}
}

func (s *EmergencyService) recordNotified(ctx context.Context, eventID uuid.UUID, r *notification.Result) error {
	err := s.decider.MarkServicesContacted(ctx, eventID, r.SuccessfulNotifications)
	if err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
		return err
	}
	return s.events.SetContactsNotified(ctx, eventID, r.NotifiedContacts)
}

// Resolve closes the event and its tracking incident.
func (s *EmergencyService) Resolve(ctx context.Context, eventID uuid.UUID, reason string) (*domain.EmergencyEvent, error) {
	event, err := s.decider.Resolve(ctx, eventID, reason)
	if err != nil {
		return nil, err
	}
	s.closeIncident(ctx, eventID)
	return event, nil
}

// Cancel closes the event without resolution.
func (s *EmergencyService) Cancel(ctx context.Context, eventID uuid.UUID, reason string) (*domain.EmergencyEvent, error) {
	event, err := s.decider.Cancel(ctx, eventID, reason)
	if err != nil {
		return nil, err
	}
	s.closeIncident(ctx, eventID)
	return event, nil
}

// MarkFalseAlarm flags and cancels the event.
func (s *EmergencyService) MarkFalseAlarm(ctx context.Context, eventID uuid.UUID, reason string) (*domain.EmergencyEvent, error) {
	event, err := s.decider.MarkFalseAlarm(ctx, eventID, reason)
	if err != nil {
		return nil, err
	}
	s.closeIncident(ctx, eventID)
	return event, nil
}

// Event returns the event with its transitions and incident.
func (s *EmergencyService) Event(ctx context.Context, eventID uuid.UUID) (*EventDetails, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	transitions, err := s.events.ListTransitions(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", eventID, err)
	}

	details := &EventDetails{Event: event, Transitions: transitions}

	incident, err := s.incidents.GetByEventID(ctx, eventID)
	if err == nil {
		details.Incident = incident
	} else if !errors.Is(err, domain.ErrIncidentNotFound) {
		return nil, fmt.Errorf("event %s: %w", eventID, err)
	}

	return details, nil
}

// Deliveries returns the notification ledger of an event.
func (s *EmergencyService) Deliveries(ctx context.Context, eventID uuid.UUID) ([]domain.DeliveryRecord, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.deliveries.ListByEvent(ctx, eventID)
}

// OpenIncident creates the tracking incident for an assessment's event, or
// returns the one already open.
func (s *EmergencyService) OpenIncident(ctx context.Context, assessmentID uuid.UUID, subjectName string, initial domain.Location) (*domain.Incident, string, error) {
	event, err := s.events.GetByAssessmentID(ctx, assessmentID)
	if err != nil {
		return nil, "", err
	}

	existing, err := s.incidents.GetByEventID(ctx, event.ID)
	if err == nil {
		return existing, s.tracker.TrackingURL(existing.IncidentID), nil
	}
	if !errors.Is(err, domain.ErrIncidentNotFound) {
		return nil, "", fmt.Errorf("event %s: %w", event.ID, err)
	}

	if initial.IsZero() {
		initial = event.Location
	}
	if subjectName == "" {
		subjectName = event.SubjectID
	}

	return s.tracker.CreateIncident(ctx, tracking.CreateIncidentRequest{
		EmergencyEventID: event.ID,
		SubjectName:      subjectName,
		InitialLocation:  initial,
		DetectionType:    event.DetectionType,
	})
}

func (s *EmergencyService) closeIncident(ctx context.Context, eventID uuid.UUID) {
	incident, err := s.incidents.GetByEventID(ctx, eventID)
	if err != nil {
		if !errors.Is(err, domain.ErrIncidentNotFound) {
			s.logger.Error("failed to load incident", slog.String("event_id", eventID.String()), slog.Any("error", err))
		}
		return
	}
	if err := s.tracker.Close(ctx, incident.IncidentID); err != nil {
		s.logger.Error("failed to close incident",
			slog.String("event_id", eventID.String()),
			slog.String("incident_id", incident.IncidentID),
			slog.Any("error", err),
		)
	}
}
