// Package decision turns a confirmed assessment into exactly one emergency
// event and drives the event through its lifecycle.
package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
	"github.com/saturnino-fabrica-de-software/guardian/internal/metrics"
	"github.com/saturnino-fabrica-de-software/guardian/internal/policy"
)

type EventRepository interface {
	CreateIfAbsent(ctx context.Context, event *domain.EmergencyEvent) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.EmergencyEvent, error)
	Transition(ctx context.Context, id uuid.UUID, from, to domain.EventStatus, reason string) error
	MarkFalseAlarm(ctx context.Context, id uuid.UUID) error
}

type AssessmentRepository interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.AssessmentStatus) error
}

// Context is what the decision knows beyond the assessment itself. Now is
// the subject's local time and drives the night rule.
type Context struct {
	Now         time.Time
	Environment *domain.EnvironmentFeatures
	Motion      *domain.MotionFeatures
	Biometrics  *domain.Biometrics
}

// ContextFromSnapshot builds a decision context from the evaluated snapshot.
func ContextFromSnapshot(now time.Time, s domain.SensorSnapshot) Context {
	return Context{Now: now, Environment: s.Environment, Motion: s.Motion, Biometrics: s.Biometrics}
}

type Engine struct {
	events      EventRepository
	assessments AssessmentRepository
	policy      policy.Policy
	simulate    bool
	logger      *slog.Logger
	now         func() time.Time
}

// NewEngine creates the decision engine. simulate marks every response plan
// so emergency services are simulated rather than contacted.
func NewEngine(events EventRepository, assessments AssessmentRepository, p policy.Policy, simulate bool, logger *slog.Logger) *Engine {
	return &Engine{
		events:      events,
		assessments: assessments,
		policy:      p,
		simulate:    simulate,
		logger:      logger,
		now:         time.Now,
	}
}

// Decide creates the event for a confirmed assessment. Calling it again for
// the same assessment returns the existing event with created=false.
func (e *Engine) Decide(ctx context.Context, a *domain.Assessment, dc Context) (*domain.EmergencyEvent, bool, error) {
	if a.Status != domain.AssessmentConfirmed {
		return nil, false, domain.ErrAssessmentNotConfirmed.WithError(fmt.Errorf("assessment %s is %s", a.ID, a.Status))
	}
	if dc.Now.IsZero() {
		dc.Now = e.now()
	}

	priority, tieBreakers := e.Prioritize(a, dc)

	event := &domain.EmergencyEvent{
		ID:            uuid.New(),
		AssessmentID:  a.ID,
		SubjectID:     a.SubjectID,
		Priority:      priority,
		ThreatLevel:   a.ThreatLevel,
		DetectionType: a.DetectionType,
		Location:      a.Location,
		Plan: domain.ResponsePlan{
			Channels:           append([]domain.Channel(nil), e.policy.Decision.Channels[priority]...),
			EscalateToServices: priority.Rank() >= e.policy.Decision.EscalateServicesAt.Rank(),
			SimulateServices:   e.simulate,
			TieBreakers:        tieBreakers,
		},
	}
	event.DecisionRationale = rationale(a, priority, tieBreakers)

	created, err := e.events.CreateIfAbsent(ctx, event)
	if err != nil {
		return nil, false, fmt.Errorf("assessment %s: create event: %w", a.ID, err)
	}

	outcome := "created"
	if !created {
		outcome = "duplicate"
	}
	metrics.EventsTotal.WithLabelValues(string(event.Priority), outcome).Inc()

	e.logger.Info("emergency decision",
		slog.String("assessment_id", a.ID.String()),
		slog.String("event_id", event.ID.String()),
		slog.String("priority", string(event.Priority)),
		slog.Bool("created", created),
	)

	return event, created, nil
}

// Prioritize maps threat level and confidence to a priority. A HIGH
// assessment below the high-confidence bar is escalated only when enough
// context tie-breakers agree.
func (e *Engine) Prioritize(a *domain.Assessment, dc Context) (domain.Priority, []string) {
	switch a.ThreatLevel {
	case domain.ThreatCritical:
		return domain.PriorityCritical, nil
	case domain.ThreatHigh:
		if a.Confidence >= e.policy.Decision.HighConfidence {
			return domain.PriorityHigh, nil
		}
		points := e.tieBreakers(dc)
		if len(points) >= e.policy.Decision.BorderlineEscalationPoints {
			return domain.PriorityHigh, points
		}
		return domain.PriorityMedium, points
	case domain.ThreatMedium:
		return domain.PriorityMedium, nil
	default:
		return domain.PriorityLow, nil
	}
}

func (e *Engine) tieBreakers(dc Context) []string {
	var points []string
	if e.policy.Decision.IsNight(dc.Now.Hour()) {
		points = append(points, "night_time")
	}
	if env := dc.Environment; env != nil && (env.Isolated || (env.Indoor != nil && !*env.Indoor)) {
		points = append(points, "isolated_or_outdoor")
	}
	if dc.Motion != nil && dc.Motion.FallDetected {
		points = append(points, "fall_detected")
	}
	if hr := e.policy.Assessment.ElevatedHeartRate; dc.Biometrics != nil && hr > 0 && dc.Biometrics.HeartRate >= hr {
		points = append(points, "elevated_heart_rate")
	}
	return points
}

// MarkServicesContacted records that at least one notification went out.
func (e *Engine) MarkServicesContacted(ctx context.Context, eventID uuid.UUID, successes int) error {
	if successes < 1 {
		return domain.ErrNoSuccessfulDelivery
	}

	reason := fmt.Sprintf("%d notification(s) sent", successes)
	if err := e.events.Transition(ctx, eventID, domain.EventInProgress, domain.EventServicesContacted, reason); err != nil {
		return fmt.Errorf("event %s: %w", eventID, err)
	}

	metrics.EventTransitionsTotal.WithLabelValues(string(domain.EventServicesContacted)).Inc()
	return nil
}

// Resolve closes the event as handled.
func (e *Engine) Resolve(ctx context.Context, eventID uuid.UUID, reason string) (*domain.EmergencyEvent, error) {
	return e.finish(ctx, eventID, domain.EventResolved, reason)
}

// Cancel closes the event without resolution.
func (e *Engine) Cancel(ctx context.Context, eventID uuid.UUID, reason string) (*domain.EmergencyEvent, error) {
	return e.finish(ctx, eventID, domain.EventCancelled, reason)
}

// MarkFalseAlarm flags the event, cancels it and moves the source assessment
// to FALSE_POSITIVE so the subject's history reflects it.
func (e *Engine) MarkFalseAlarm(ctx context.Context, eventID uuid.UUID, reason string) (*domain.EmergencyEvent, error) {
	event, err := e.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.Status.CanFlagFalseAlarm() {
		return nil, domain.ErrInvalidTransition.WithError(fmt.Errorf("event %s is %s", eventID, event.Status))
	}

	if err := e.events.MarkFalseAlarm(ctx, eventID); err != nil {
		return nil, fmt.Errorf("event %s: mark false alarm: %w", eventID, err)
	}

	if err := e.assessments.UpdateStatus(ctx, event.AssessmentID, domain.AssessmentConfirmed, domain.AssessmentFalsePositive); err != nil {
		if !errors.Is(err, domain.ErrInvalidTransition) {
			return nil, fmt.Errorf("assessment %s: %w", event.AssessmentID, err)
		}
		e.logger.Warn("assessment not flagged as false positive",
			slog.String("assessment_id", event.AssessmentID.String()),
			slog.Any("error", err),
		)
	}

	if reason == "" {
		reason = "operator reported a false alarm"
	}
	return e.finish(ctx, eventID, domain.EventCancelled, "false alarm: "+reason)
}

func (e *Engine) finish(ctx context.Context, eventID uuid.UUID, to domain.EventStatus, reason string) (*domain.EmergencyEvent, error) {
	event, err := e.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.Status.CanTransition(to) {
		return nil, domain.ErrInvalidTransition.WithError(fmt.Errorf("event %s: %s -> %s", eventID, event.Status, to))
	}

	if err := e.events.Transition(ctx, eventID, event.Status, to, reason); err != nil {
		return nil, fmt.Errorf("event %s: %w", eventID, err)
	}
	metrics.EventTransitionsTotal.WithLabelValues(string(to)).Inc()

	e.logger.Info("emergency event closed",
		slog.String("event_id", eventID.String()),
		slog.String("status", string(to)),
		slog.String("reason", reason),
	)

	return e.events.GetByID(ctx, eventID)
}

func rationale(a *domain.Assessment, priority domain.Priority, tieBreakers []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s threat at confidence %.2f", a.ThreatLevel, a.Confidence)
	if a.Source == domain.SourceFallback {
		b.WriteString(" (rule-based fallback)")
	}
	fmt.Fprintf(&b, " -> %s priority", priority)
	if len(tieBreakers) > 0 {
		b.WriteString("; context: " + strings.Join(tieBreakers, ", "))
	}
	return b.String()
}
