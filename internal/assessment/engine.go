// Package assessment turns a sensor snapshot into a persisted threat
// assessment. The inference oracle is called once per evaluation; when it
// fails the deterministic rule scorer takes over with a capped confidence.
package assessment

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
	"github.com/saturnino-fabrica-de-software/guardian/internal/provider"
)

const defaultOracleTimeout = 5 * time.Second

// Detection types used for message wording
const (
	DetectionEmergencyWords = "emergency_words"
	DetectionAbruptNoise    = "abrupt_noise"
	DetectionFall           = "fall"
	DetectionSensor         = "sensor"
)

type Repository interface {
	Create(ctx context.Context, a *domain.Assessment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.AssessmentStatus) error
	SaveResult(ctx context.Context, a *domain.Assessment, expected domain.AssessmentStatus) error
	FalsePositiveRate(ctx context.Context, subjectID string, since time.Time) (rate float64, samples int, err error)
}

// Request is a single evaluation
type Request struct {
	SubjectID   string
	SnapshotRef string
	Snapshot    domain.SensorSnapshot
}

type Engine struct {
	repo      Repository
	oracle    provider.InferenceOracle
	policy    policy.AssessmentPolicy
	scorer    *RuleScorer
	validator *Validator
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewEngine(repo Repository, oracle provider.InferenceOracle, p policy.AssessmentPolicy, logger *slog.Logger) *Engine {
	return &Engine{
		repo:      repo,
		oracle:    oracle,
		policy:    p,
		scorer:    NewRuleScorer(p),
		validator: NewValidator(p, repo, logger),
		timeout:   defaultOracleTimeout,
		logger:    logger,
		now:       time.Now,
	}
}

// WithOracleTimeout sets the per-call oracle budget.
func (e *Engine) WithOracleTimeout(d time.Duration) *Engine {
	if d > 0 {
		e.timeout = d
	}
	return e
}

// WithClock replaces the clock used for the history window.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Evaluate runs one assessment to a terminal status. Oracle and scoring
// failures end in a saved assessment, never in an error; errors are
// reserved for invalid input and persistence failures.
func (e *Engine) Evaluate(ctx context.Context, req Request) (*domain.Assessment, error) {
	if strings.TrimSpace(req.SubjectID) == "" {
		return nil, domain.ErrValidationFailed.WithError(errors.New("subject_id is required"))
	}
	if err := req.Snapshot.Location.Validate(); err != nil {
		return nil, err
	}

	a := &domain.Assessment{
		ID:                uuid.New(),
		SubjectID:         req.SubjectID,
		SensorSnapshotRef: req.SnapshotRef,
		DetectionType:     e.detectionType(req.Snapshot),
		ThreatLevel:       domain.ThreatNone,
		Status:            domain.AssessmentPending,
		Location:          req.Snapshot.Location,
	}
	if a.SensorSnapshotRef == "" {
		a.SensorSnapshotRef = "snapshot:" + a.ID.String()
	}

	if err := e.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("assessment: %w", err)
	}
	if err := e.repo.UpdateStatus(ctx, a.ID, domain.AssessmentPending, domain.AssessmentProcessing); err != nil {
		return nil, fmt.Errorf("assessment %s: %w", a.ID, err)
	}
	a.Status = domain.AssessmentProcessing

	result, oracleErr := e.callOracle(ctx, req)
	verdict, ruleErr := e.scorer.Score(req.Snapshot)

	switch {
	case oracleErr == nil:
		e.applyOracle(ctx, a, req.Snapshot, result, verdict)
	case ruleErr == nil:
		e.applyFallback(a, verdict, oracleErr)
	default:
		a.Source = domain.SourceFallback
		a.OracleError = oracleErr.Error()
		a.Rationale = "oracle failed and rule scoring was not possible: " + ruleErr.Error()
		a.Status = domain.AssessmentFailed
	}

	if a.Status != domain.AssessmentFailed {
		a.Status = domain.Classify(a.ThreatLevel, a.Confidence)
	}

	if err := e.repo.SaveResult(ctx, a, domain.AssessmentProcessing); err != nil {
		return nil, fmt.Errorf("assessment %s: save result: %w", a.ID, err)
	}

	metrics.AssessmentsTotal.WithLabelValues(string(a.Status), string(a.Source)).Inc()

	e.logger.Info("assessment finished",
		slog.String("assessment_id", a.ID.String()),
		slog.String("subject_id", a.SubjectID),
		slog.String("threat_level", string(a.ThreatLevel)),
		slog.Float64("confidence", a.Confidence),
		slog.String("status", string(a.Status)),
		slog.String("source", string(a.Source)),
	)

	return a, nil
}

func (e *Engine) callOracle(ctx context.Context, req Request) (*provider.InferenceResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	result, err := e.oracle.Assess(callCtx, provider.NewInferenceRequest(req.SubjectID, req.Snapshot))
	if err == nil {
		err = result.Validate()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", provider.ErrOracleTimeout, err)
	}

	metrics.OracleDuration.WithLabelValues(e.oracle.Name(), oracleOutcome(err)).Observe(time.Since(start).Seconds())

	if err != nil {
		e.logger.Warn("inference oracle failed, using rule scorer",
			slog.String("provider", e.oracle.Name()),
			slog.String("subject_id", req.SubjectID),
			slog.Any("error", err),
		)
		return nil, err
	}
	return result, nil
}

func (e *Engine) applyOracle(ctx context.Context, a *domain.Assessment, snap domain.SensorSnapshot,
	result *provider.InferenceResult, verdict *Verdict,
) {
	var ruleLevel *domain.ThreatLevel
	if verdict != nil {
		ruleLevel = &verdict.Level
	}

	adj := e.validator.Refine(ctx, a.SubjectID, snap, result.ThreatLevel, result.Confidence, ruleLevel, e.now())
	metrics.ConfidenceAdjustment.Observe(adj.Delta)

	a.Source = domain.SourceOracle
	a.ThreatLevel = result.ThreatLevel
	a.OriginalConfidence = adj.Original
	a.Confidence = adj.Refined
	a.ConfidenceAdjustment = adj.Delta
	a.Rationale = result.Rationale
	a.Keywords = result.Keywords
	if len(a.Keywords) == 0 && verdict != nil {
		a.Keywords = verdict.Keywords
	}
}

func (e *Engine) applyFallback(a *domain.Assessment, verdict *Verdict, oracleErr error) {
	level, confidence := capConfidence(verdict.Level, verdict.Confidence, e.policy.FallbackConfidenceCap)

	a.Source = domain.SourceFallback
	a.OracleError = oracleErr.Error()
	a.ThreatLevel = level
	a.OriginalConfidence = verdict.Confidence
	a.Confidence = confidence
	a.ConfidenceAdjustment = confidence - verdict.Confidence
	a.Rationale = verdict.Rationale
	a.Keywords = verdict.Keywords
}

// detectionType names what triggered the capture when the device did not say.
func (e *Engine) detectionType(snap domain.SensorSnapshot) string {
	if snap.DetectionType != "" {
		return snap.DetectionType
	}
	switch {
	case snap.Motion != nil && snap.Motion.FallDetected:
		return DetectionFall
	case snap.Audio != nil && (snap.Audio.Transcript != "" || len(snap.Audio.Keywords) > 0):
		return DetectionEmergencyWords
	case snap.Audio != nil && snap.Audio.PeakDB >= e.policy.LoudPeakDB:
		return DetectionAbruptNoise
	default:
		return DetectionSensor
	}
}

func oracleOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, provider.ErrOracleTimeout):
		return "timeout"
	case errors.Is(err, provider.ErrInvalidOracleResponse):
		return "invalid"
	default:
		return "error"
	}
}
