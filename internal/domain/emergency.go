package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus é o estado de um evento de emergência
type EventStatus string

const (
	EventInitiated         EventStatus = "INITIATED"
	EventInProgress        EventStatus = "IN_PROGRESS"
	EventServicesContacted EventStatus = "SERVICES_CONTACTED"
	EventResolved          EventStatus = "RESOLVED"
	EventCancelled         EventStatus = "CANCELLED"
)

// IsTerminal reports whether the event is closed.
func (s EventStatus) IsTerminal() bool {
	return s == EventResolved || s == EventCancelled
}

// IsOpen reports whether the event is still being handled.
func (s EventStatus) IsOpen() bool {
	return !s.IsTerminal()
}

// CanTransition checks a status change against the emergency lifecycle.
func (s EventStatus) CanTransition(to EventStatus) bool {
	switch s {
	case EventInitiated:
		return to == EventInProgress || to == EventCancelled
	case EventInProgress:
		return to == EventServicesContacted || to == EventResolved || to == EventCancelled
	case EventServicesContacted:
		return to == EventResolved || to == EventCancelled
	case EventResolved, EventCancelled:
		return false
	default:
		return false
	}
}

// CanFlagFalseAlarm reports whether an event in this status may be flagged as a false alarm.
func (s EventStatus) CanFlagFalseAlarm() bool {
	switch s {
	case EventInProgress, EventServicesContacted:
		return true
	case EventInitiated, EventResolved, EventCancelled:
		return false
	default:
		return false
	}
}

// Priority é a prioridade de resposta de um evento
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Rank orders priorities from LOW (1) to CRITICAL (4); unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	default:
		return 0
	}
}

// Channel é um canal de notificação
type Channel string

const (
	ChannelSMS   Channel = "SMS"
	ChannelVoice Channel = "VOICE"
	ChannelEmail Channel = "EMAIL"
)

// Valid reports whether the channel is one of the known values.
func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelVoice, ChannelEmail:
		return true
	default:
		return false
	}
}

// ResponsePlan define como o evento deve ser respondido
type ResponsePlan struct {
	Channels           []Channel `json:"channels"`
	EscalateToServices bool      `json:"escalate_to_services"`
	SimulateServices   bool      `json:"simulate_services"`
	TieBreakers        []string  `json:"tie_breakers,omitempty"`
}

// Allows reports whether the plan permits sending over the channel.
func (p ResponsePlan) Allows(c Channel) bool {
	for _, ch := range p.Channels {
		if ch == c {
			return true
		}
	}
	return false
}

// EmergencyEvent é a resposta autônoma disparada por uma avaliação confirmada
type EmergencyEvent struct {
	ID                uuid.UUID    `json:"id"`
	AssessmentID      uuid.UUID    `json:"assessment_id"`
	SubjectID         string       `json:"subject_id"`
	Status            EventStatus  `json:"status"`
	Priority          Priority     `json:"priority"`
	ThreatLevel       ThreatLevel  `json:"threat_level"`
	DetectionType     string       `json:"detection_type"`
	Location          Location     `json:"location"`
	ContactsNotified  []string     `json:"contacts_notified"`
	DecisionRationale string       `json:"decision_rationale"`
	Plan              ResponsePlan `json:"response_plan"`
	FalseAlarm        bool         `json:"false_alarm"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
	ResolvedAt        *time.Time   `json:"resolved_at,omitempty"`
}

// EventTransition é um registro de auditoria de mudança de estado
type EventTransition struct {
	EventID   uuid.UUID   `json:"event_id"`
	From      EventStatus `json:"from,omitempty"`
	To        EventStatus `json:"to"`
	Reason    string      `json:"reason"`
	CreatedAt time.Time   `json:"created_at"`
}
