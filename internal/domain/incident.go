package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// IncidentRetention is how long an incident stays readable after creation.
	IncidentRetention = 7 * 24 * time.Hour
	// SampleRetention is how long a single location sample lives after it is written.
	SampleRetention = 24 * time.Hour

	incidentIDPrefix = "EMG-"
)

var incidentIDRegex = regexp.MustCompile(`^EMG-[0-9A-F]{8}$`)

// IncidentStatus é o estado da sessão de rastreamento
type IncidentStatus string

const (
	IncidentActive IncidentStatus = "ACTIVE"
	IncidentClosed IncidentStatus = "CLOSED"
)

// Incident é a sessão de rastreamento pública ligada a um evento
type Incident struct {
	IncidentID       string         `json:"incident_id"`
	EmergencyEventID uuid.UUID      `json:"emergency_event_id"`
	SubjectName      string         `json:"subject_name"`
	DetectionType    string         `json:"detection_type"`
	InitialLocation  Location       `json:"initial_location"`
	Status           IncidentStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	ExpiresAt        time.Time      `json:"expires_at"`
	ClosedAt         *time.Time     `json:"closed_at,omitempty"`
}

// IsExpired reports whether the retention window has passed at now.
func (i *Incident) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// AcceptsSamples reports whether the device should keep sending location updates.
func (i *Incident) AcceptsSamples(now time.Time) bool {
	return i.Status == IncidentActive && !i.IsExpired(now)
}

// NewIncidentID returns a short opaque identifier from crypto randomness.
func NewIncidentID() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate incident id: %w", err)
	}
	return incidentIDPrefix + strings.ToUpper(hex.EncodeToString(b)), nil
}

// ValidIncidentID checks the public identifier format.
func ValidIncidentID(id string) bool {
	return incidentIDRegex.MatchString(id)
}

// TrackingURL builds the public viewer link for an incident.
func TrackingURL(base, incidentID string) string {
	return base + TrackingQuery(base, incidentID)
}

// TrackingQuery is the part TrackingURL appends to base, including the
// separator that fits it.
func TrackingQuery(base, incidentID string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return sep + "incident=" + url.QueryEscape(incidentID)
}

// LocationSample é um ponto do rastro de localização
type LocationSample struct {
	IncidentID     string    `json:"incident_id"`
	Timestamp      time.Time `json:"timestamp"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	Speed          *float64  `json:"speed,omitempty"`
	Heading        *float64  `json:"heading,omitempty"`
	BatteryPercent *int      `json:"battery_percent,omitempty"`
	TTLAt          time.Time `json:"ttl_at"`
}

// Validate checks bounds of a sample before it is stored.
func (s *LocationSample) Validate() error {
	if s.Timestamp.IsZero() {
		return ErrValidationFailed.WithError(fmt.Errorf("timestamp is required"))
	}
	if err := (Location{Latitude: s.Latitude, Longitude: s.Longitude, AccuracyMeters: s.AccuracyMeters}).Validate(); err != nil {
		return err
	}
	if s.Heading != nil && (!finite(*s.Heading) || *s.Heading < 0 || *s.Heading >= 360) {
		return ErrValidationFailed.WithError(fmt.Errorf("heading must be in [0, 360)"))
	}
	if s.Speed != nil && (!finite(*s.Speed) || *s.Speed < 0) {
		return ErrValidationFailed.WithError(fmt.Errorf("speed must not be negative"))
	}
	if s.BatteryPercent != nil && (*s.BatteryPercent < 0 || *s.BatteryPercent > 100) {
		return ErrValidationFailed.WithError(fmt.Errorf("battery percent must be between 0 and 100"))
	}
	return nil
}
