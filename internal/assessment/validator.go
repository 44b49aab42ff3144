package assessment

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
	"github.com/saturnino-fabrica-de-software/guardian/internal/policy"
)

// HistorySource reports how often a subject's past alerts turned out false.
type HistorySource interface {
	FalsePositiveRate(ctx context.Context, subjectID string, since time.Time) (rate float64, samples int, err error)
}

// Adjustment is the validator output
type Adjustment struct {
	Original     float64
	Refined      float64
	Delta        float64
	Completeness float64
	Agreement    float64
	History      float64
}

// Validator refines an oracle confidence by at most MaxAdjustment in either
// direction. Signals at 0.5 leave it unchanged.
type Validator struct {
	policy  policy.AssessmentPolicy
	history HistorySource
	logger  *slog.Logger
}

func NewValidator(p policy.AssessmentPolicy, history HistorySource, logger *slog.Logger) *Validator {
	return &Validator{policy: p, history: history, logger: logger}
}

// Refine computes the adjusted confidence. ruleLevel is the rule scorer's
// opinion; nil means it could not score the snapshot.
func (v *Validator) Refine(ctx context.Context, subjectID string, snap domain.SensorSnapshot,
	level domain.ThreatLevel, confidence float64, ruleLevel *domain.ThreatLevel, now time.Time,
) Adjustment {
	adj := Adjustment{
		Original:     confidence,
		Completeness: snap.Completeness(),
		Agreement:    0.5,
		History:      0.5,
	}

	if ruleLevel != nil {
		distance := math.Abs(float64(level.Rank() - ruleLevel.Rank()))
		adj.Agreement = 1 - distance/4
	}

	if v.history != nil {
		since := now.Add(-v.policy.HistoryWindow)
		rate, samples, err := v.history.FalsePositiveRate(ctx, subjectID, since)
		switch {
		case err != nil:
			v.logger.Warn("false positive history unavailable",
				slog.String("subject_id", subjectID),
				slog.Any("error", err),
			)
		case samples > 0:
			adj.History = 1 - rate
		}
	}

	w := v.policy.ValidatorWeights
	total := w.Completeness + w.Agreement + w.History
	signal := 0.5
	if total > 0 {
		signal = (w.Completeness*adj.Completeness + w.Agreement*adj.Agreement + w.History*adj.History) / total
	}

	adj.Delta = (signal - 0.5) * 2 * v.policy.MaxAdjustment
	adj.Refined = clamp01(confidence + adj.Delta)
	adj.Delta = adj.Refined - confidence
	return adj
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
