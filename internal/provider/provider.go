package provider

import (
	"context"
	"errors"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

var (
	// ErrOracleTimeout indicates the oracle did not answer within the call budget
	ErrOracleTimeout = errors.New("inference oracle timed out")

	// ErrOracleUnavailable indicates the oracle could not be reached or refused the call
	ErrOracleUnavailable = errors.New("inference oracle unavailable")

	// ErrInvalidOracleResponse indicates the oracle answered with something that cannot be scored
	ErrInvalidOracleResponse = errors.New("inference oracle returned an invalid response")
)

// InferenceOracle define a interface para modelos de inferência de ameaça
type InferenceOracle interface {
	// Name identifica o provider nos logs e métricas
	Name() string

	// Assess classifica o contexto dos sensores em um nível de ameaça.
	// Falhas retornam um dos erros Err* deste pacote, nunca um resultado de baixa confiança.
	Assess(ctx context.Context, req InferenceRequest) (*InferenceResult, error)
}

// InferenceRequest is the sensor context sent to the oracle
type InferenceRequest struct {
	SubjectID     string                      `json:"subject_id"`
	Location      domain.Location             `json:"location"`
	Audio         *domain.AudioFeatures       `json:"audio,omitempty"`
	Motion        *domain.MotionFeatures      `json:"motion,omitempty"`
	Environment   *domain.EnvironmentFeatures `json:"environment,omitempty"`
	Biometrics    *domain.Biometrics          `json:"biometrics,omitempty"`
	DetectionType string                      `json:"detection_type,omitempty"`
	Context       string                      `json:"context,omitempty"`
}

// NewInferenceRequest builds a request from a snapshot
func NewInferenceRequest(subjectID string, s domain.SensorSnapshot) InferenceRequest {
	return InferenceRequest{
		SubjectID:     subjectID,
		Location:      s.Location,
		Audio:         s.Audio,
		Motion:        s.Motion,
		Environment:   s.Environment,
		Biometrics:    s.Biometrics,
		DetectionType: s.DetectionType,
		Context:       s.Context,
	}
}

// InferenceResult is the oracle verdict
type InferenceResult struct {
	ThreatLevel domain.ThreatLevel `json:"threat_level"`
	Confidence  float64            `json:"confidence"`
	Rationale   string             `json:"rationale"`
	Keywords    []string           `json:"keywords,omitempty"`
}

// Validate rejects verdicts that cannot be scored
func (r *InferenceResult) Validate() error {
	if _, err := domain.ParseThreatLevel(string(r.ThreatLevel)); err != nil {
		return errors.Join(ErrInvalidOracleResponse, err)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return errors.Join(ErrInvalidOracleResponse, errors.New("confidence out of [0, 1]"))
	}
	return nil
}
