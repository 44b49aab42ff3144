package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of auditable operator action
type EventType string

const (
	EventEmergencyTriggered  EventType = "EMERGENCY_TRIGGERED"
	EventEmergencyDecided    EventType = "EMERGENCY_DECIDED"
	EventEmergencyResolved   EventType = "EMERGENCY_RESOLVED"
	EventEmergencyCancelled  EventType = "EMERGENCY_CANCELLED"
	EventEmergencyFalseAlarm EventType = "EMERGENCY_FALSE_ALARM"
	EventIncidentOpened      EventType = "INCIDENT_OPENED"
)

// Event is one operator action against the pipeline
type Event struct {
	ID           uuid.UUID         `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	EventType    EventType         `json:"event_type"`
	OperatorKey  string            `json:"operator_key,omitempty"`
	AssessmentID string            `json:"assessment_id,omitempty"`
	EmergencyID  string            `json:"emergency_id,omitempty"`
	IncidentID   string            `json:"incident_id,omitempty"`
	Success      bool              `json:"success"`
	Error        string            `json:"error,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	IPAddress    string            `json:"ip_address,omitempty"`
	UserAgent    string            `json:"user_agent,omitempty"`
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// SlogLogger implements Logger using slog
type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{
		logger: logger.With("component", "audit"),
	}
}

// Log records an audit event, filling ID and Timestamp when unset
func (l *SlogLogger) Log(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to marshal audit event",
			slog.String("error", err.Error()),
			slog.String("event_type", string(event.EventType)),
		)
		return err
	}

	l.logger.InfoContext(ctx, "audit_event",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", string(event.EventType)),
		slog.String("operator_key", event.OperatorKey),
		slog.Bool("success", event.Success),
		slog.String("event_data", string(eventJSON)),
	)

	return nil
}

// NoOpLogger discards events
type NoOpLogger struct{}

func (l *NoOpLogger) Log(_ context.Context, _ Event) error {
	return nil
}
