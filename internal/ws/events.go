package ws

import (
	"time"
)

type EventType string

const (
	EventLocationUpdated EventType = "location.updated"
	EventTrackingClosed  EventType = "tracking.closed"
)

type Event struct {
	IncidentID string      `json:"incident_id"`
	Type       EventType   `json:"type"`
	Data       interface{} `json:"data,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}
