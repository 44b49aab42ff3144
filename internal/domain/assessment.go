package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ThreatLevel é a severidade atribuída a uma avaliação
type ThreatLevel string

const (
	ThreatNone     ThreatLevel = "NONE"
	ThreatLow      ThreatLevel = "LOW"
	ThreatMedium   ThreatLevel = "MEDIUM"
	ThreatHigh     ThreatLevel = "HIGH"
	ThreatCritical ThreatLevel = "CRITICAL"
)

// ParseThreatLevel converts a raw label into a ThreatLevel.
func ParseThreatLevel(s string) (ThreatLevel, error) {
	switch l := ThreatLevel(s); l {
	case ThreatNone, ThreatLow, ThreatMedium, ThreatHigh, ThreatCritical:
		return l, nil
	default:
		return "", fmt.Errorf("unknown threat level %q", s)
	}
}

// MinConfidence is the confidence a result must reach to count at this level.
func (l ThreatLevel) MinConfidence() float64 {
	switch l {
	case ThreatNone:
		return 0.0
	case ThreatLow:
		return 0.3
	case ThreatMedium:
		return 0.5
	case ThreatHigh:
		return 0.7
	case ThreatCritical:
		return 0.8
	default:
		return 1.0
	}
}

// RequiresEmergencyResponse reports whether the level can ever confirm an emergency.
func (l ThreatLevel) RequiresEmergencyResponse() bool {
	return l == ThreatHigh || l == ThreatCritical
}

// Rank orders levels from NONE (0) to CRITICAL (4).
func (l ThreatLevel) Rank() int {
	switch l {
	case ThreatLow:
		return 1
	case ThreatMedium:
		return 2
	case ThreatHigh:
		return 3
	case ThreatCritical:
		return 4
	default:
		return 0
	}
}

// AssessmentStatus é o ciclo de vida de uma avaliação
type AssessmentStatus string

const (
	AssessmentPending       AssessmentStatus = "PENDING"
	AssessmentProcessing    AssessmentStatus = "PROCESSING"
	AssessmentCompleted     AssessmentStatus = "COMPLETED"
	AssessmentConfirmed     AssessmentStatus = "CONFIRMED"
	AssessmentFalsePositive AssessmentStatus = "FALSE_POSITIVE"
	AssessmentFailed        AssessmentStatus = "FAILED"
	AssessmentCancelled     AssessmentStatus = "CANCELLED"
)

// IsTerminal reports whether the status can no longer change through evaluation.
func (s AssessmentStatus) IsTerminal() bool {
	switch s {
	case AssessmentCompleted, AssessmentConfirmed, AssessmentFalsePositive, AssessmentFailed, AssessmentCancelled:
		return true
	case AssessmentPending, AssessmentProcessing:
		return false
	default:
		return false
	}
}

// CanTransition checks a status change against the assessment lifecycle.
// The only moves out of a terminal status are the false alarm flags raised
// after an emergency has been handled.
func (s AssessmentStatus) CanTransition(to AssessmentStatus) bool {
	switch s {
	case AssessmentPending:
		return to == AssessmentProcessing || to == AssessmentCancelled
	case AssessmentProcessing:
		return to == AssessmentCompleted || to == AssessmentConfirmed ||
			to == AssessmentFailed || to == AssessmentCancelled
	case AssessmentConfirmed, AssessmentCompleted:
		return to == AssessmentFalsePositive
	case AssessmentFalsePositive, AssessmentFailed, AssessmentCancelled:
		return false
	default:
		return false
	}
}

// Classify maps a refined result to its terminal status.
func Classify(level ThreatLevel, confidence float64) AssessmentStatus {
	if level.RequiresEmergencyResponse() && confidence >= level.MinConfidence() {
		return AssessmentConfirmed
	}
	return AssessmentCompleted
}

// AssessmentSource identifica quem produziu o nível de ameaça
type AssessmentSource string

const (
	SourceOracle   AssessmentSource = "oracle"
	SourceFallback AssessmentSource = "fallback"
)

// Assessment representa uma avaliação de ameaça para um snapshot de sensores
type Assessment struct {
	ID                   uuid.UUID        `json:"id"`
	SubjectID            string           `json:"subject_id"`
	SensorSnapshotRef    string           `json:"sensor_snapshot_ref"`
	DetectionType        string           `json:"detection_type"`
	ThreatLevel          ThreatLevel      `json:"threat_level"`
	Confidence           float64          `json:"confidence"`
	OriginalConfidence   float64          `json:"original_confidence"`
	ConfidenceAdjustment float64          `json:"confidence_adjustment"`
	Rationale            string           `json:"rationale"`
	Keywords             []string         `json:"keywords,omitempty"`
	Status               AssessmentStatus `json:"status"`
	Source               AssessmentSource `json:"source"`
	OracleError          string           `json:"oracle_error,omitempty"`
	Location             Location         `json:"location"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// Recovered reports whether the oracle failed and the rule scorer produced the result.
func (a *Assessment) Recovered() bool {
	return a.Source == SourceFallback && a.OracleError != ""
}

// Location é uma coordenada com precisão opcional e nome do local
type Location struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracy_meters,omitempty"`
	PlaceName      string  `json:"place_name,omitempty"`
}

// IsZero reports whether no coordinates were supplied.
func (l Location) IsZero() bool {
	return l.Latitude == 0 && l.Longitude == 0
}

// Validate checks coordinate bounds.
func (l Location) Validate() error {
	if !finite(l.Latitude) || !finite(l.Longitude) {
		return ErrInvalidCoordinates.WithError(fmt.Errorf("lat=%v lng=%v", l.Latitude, l.Longitude))
	}
	if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
		return ErrInvalidCoordinates.WithError(fmt.Errorf("lat=%v lng=%v", l.Latitude, l.Longitude))
	}
	if !finite(l.AccuracyMeters) || l.AccuracyMeters < 0 {
		return ErrValidationFailed.WithError(fmt.Errorf("accuracy must be a non-negative number"))
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// AudioFeatures são as características extraídas do áudio no dispositivo
type AudioFeatures struct {
	LevelDB    float64  `json:"level_db"`
	PeakDB     float64  `json:"peak_db"`
	Transcript string   `json:"transcript,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
}

// MotionFeatures são os sinais de movimento do dispositivo
type MotionFeatures struct {
	AccelerationG  float64 `json:"acceleration_g"`
	SuddenMovement bool    `json:"sudden_movement"`
	FallDetected   bool    `json:"fall_detected"`
}

// EnvironmentFeatures descrevem o ambiente ao redor do sujeito
type EnvironmentFeatures struct {
	AmbientNoiseDB float64 `json:"ambient_noise_db"`
	Lighting       string  `json:"lighting,omitempty"`
	Indoor         *bool   `json:"indoor,omitempty"`
	Isolated       bool    `json:"isolated"`
}

// Biometrics são sinais vitais opcionais
type Biometrics struct {
	HeartRate       int     `json:"heart_rate"`
	SkinConductance float64 `json:"skin_conductance,omitempty"`
}

// SensorSnapshot é a entrada completa de uma avaliação
type SensorSnapshot struct {
	Audio         *AudioFeatures       `json:"audio,omitempty"`
	Motion        *MotionFeatures      `json:"motion,omitempty"`
	Environment   *EnvironmentFeatures `json:"environment,omitempty"`
	Biometrics    *Biometrics          `json:"biometrics,omitempty"`
	Location      Location             `json:"location"`
	DetectionType string               `json:"detection_type,omitempty"`
	Context       string               `json:"context,omitempty"`
	CapturedAt    time.Time            `json:"captured_at"`
}

// Completeness is the fraction of the four sensor groups present.
func (s SensorSnapshot) Completeness() float64 {
	present := 0
	if s.Audio != nil {
		present++
	}
	if s.Motion != nil {
		present++
	}
	if s.Environment != nil {
		present++
	}
	if s.Biometrics != nil {
		present++
	}
	return float64(present) / 4
}

// IsEmpty reports whether no sensor group was supplied at all.
func (s SensorSnapshot) IsEmpty() bool {
	return s.Audio == nil && s.Motion == nil && s.Environment == nil && s.Biometrics == nil
}
