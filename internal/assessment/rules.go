package assessment

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
	"github.com/saturnino-fabrica-de-software/guardian/internal/policy"
)

// ErrEmptySnapshot is returned when there is nothing to score.
var ErrEmptySnapshot = errors.New("sensor snapshot has no sensor groups")

// Verdict is the outcome of deterministic scoring.
type Verdict struct {
	Level      domain.ThreatLevel
	Confidence float64
	Rationale  string
	Keywords   []string
	Indicators []string
}

// RuleScorer grades a snapshot from keywords and signal magnitudes alone.
// It backs the oracle when the oracle fails and provides the second opinion
// the validator compares against.
type RuleScorer struct {
	policy   policy.AssessmentPolicy
	critical map[string]bool
	distress map[string]bool
}

func NewRuleScorer(p policy.AssessmentPolicy) *RuleScorer {
	critical, distress := p.Keywords()
	return &RuleScorer{policy: p, critical: critical, distress: distress}
}

func (s *RuleScorer) Score(snap domain.SensorSnapshot) (*Verdict, error) {
	if snap.IsEmpty() {
		return nil, ErrEmptySnapshot
	}

	criticalHits, distressHits := s.matchKeywords(snap)
	indicators := s.physicalIndicators(snap)

	v := &Verdict{Level: domain.ThreatNone, Confidence: 0.1, Indicators: indicators}

	switch n := len(indicators); {
	case n >= 2:
		v.Level = domain.ThreatHigh
		v.Confidence = 0.6 + 0.05*float64(n)
	case n == 1:
		v.Level = domain.ThreatMedium
		v.Confidence = 0.55
	case snap.Audio != nil && snap.Audio.LevelDB >= s.policy.RaisedLevelDB:
		v.Level = domain.ThreatLow
		v.Confidence = 0.4
		indicators = append(indicators, "raised_voice")
		v.Indicators = indicators
	}

	switch {
	case len(criticalHits) > 0:
		v.Level = domain.ThreatCritical
		v.Confidence = 0.9
	case len(distressHits) > 0 && v.Level.Rank() <= domain.ThreatHigh.Rank():
		v.Level = domain.ThreatHigh
		if v.Confidence < 0.7 {
			v.Confidence = 0.7
		}
	}

	v.Keywords = append(criticalHits, distressHits...)
	v.Rationale = rationale(v)
	return v, nil
}

func (s *RuleScorer) matchKeywords(snap domain.SensorSnapshot) (critical, distress []string) {
	var text strings.Builder
	if snap.Audio != nil {
		text.WriteString(snap.Audio.Transcript)
		for _, k := range snap.Audio.Keywords {
			text.WriteString(" ")
			text.WriteString(k)
		}
	}
	text.WriteString(" ")
	text.WriteString(snap.Context)

	seen := make(map[string]bool)
	tokens := strings.FieldsFunc(strings.ToUpper(text.String()), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		switch {
		case s.critical[tok]:
			critical = append(critical, tok)
		case s.distress[tok]:
			distress = append(distress, tok)
		}
	}

	sort.Strings(critical)
	sort.Strings(distress)
	return critical, distress
}

func (s *RuleScorer) physicalIndicators(snap domain.SensorSnapshot) []string {
	var out []string
	if snap.Audio != nil && snap.Audio.PeakDB >= s.policy.LoudPeakDB {
		out = append(out, "loud_audio_peak")
	}
	if snap.Motion != nil {
		if snap.Motion.SuddenMovement || snap.Motion.AccelerationG >= s.policy.SuddenAccelerationG {
			out = append(out, "sudden_motion")
		}
		if snap.Motion.FallDetected {
			out = append(out, "fall_detected")
		}
	}
	if snap.Biometrics != nil && s.policy.ElevatedHeartRate > 0 && snap.Biometrics.HeartRate >= s.policy.ElevatedHeartRate {
		out = append(out, "elevated_heart_rate")
	}
	return out
}

func rationale(v *Verdict) string {
	var parts []string
	if len(v.Keywords) > 0 {
		parts = append(parts, "keywords detected: "+strings.Join(v.Keywords, ", "))
	}
	if len(v.Indicators) > 0 {
		parts = append(parts, "signals: "+strings.Join(v.Indicators, ", "))
	}
	if len(parts) == 0 {
		return "no emergency indicators detected"
	}
	return fmt.Sprintf("rule-based %s: %s", v.Level, strings.Join(parts, "; "))
}

// capConfidence limits a fallback verdict and lowers its level until the
// capped confidence still meets that level's minimum.
func capConfidence(level domain.ThreatLevel, confidence, limit float64) (domain.ThreatLevel, float64) {
	if confidence > limit {
		confidence = limit
	}
	for level != domain.ThreatNone && confidence < level.MinConfidence() {
		level = lowerLevel(level)
	}
	return level, confidence
}

func lowerLevel(l domain.ThreatLevel) domain.ThreatLevel {
	switch l {
	case domain.ThreatCritical:
		return domain.ThreatHigh
	case domain.ThreatHigh:
		return domain.ThreatMedium
	case domain.ThreatMedium:
		return domain.ThreatLow
	default:
		return domain.ThreatNone
	}
}
