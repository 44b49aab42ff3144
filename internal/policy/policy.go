// Package policy holds the tunable thresholds used by assessment, decision
// and notification. Values come from a YAML document; anything the document
// leaves out keeps the embedded default.
package policy

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

//go:embed default.yaml
var defaultPolicy []byte

type Policy struct {
	Assessment   AssessmentPolicy   `yaml:"assessment"`
	Decision     DecisionPolicy     `yaml:"decision"`
	Notification NotificationPolicy `yaml:"notification"`
}

type AssessmentPolicy struct {
	MaxAdjustment         float64          `yaml:"max_adjustment"`
	FallbackConfidenceCap float64          `yaml:"fallback_confidence_cap"`
	ValidatorWeights      ValidatorWeights `yaml:"validator_weights"`
	HistoryWindow         time.Duration    `yaml:"history_window"`
	CriticalKeywords      []string         `yaml:"critical_keywords"`
	DistressKeywords      []string         `yaml:"distress_keywords"`
	LoudPeakDB            float64          `yaml:"loud_peak_db"`
	RaisedLevelDB         float64          `yaml:"raised_level_db"`
	SuddenAccelerationG   float64          `yaml:"sudden_acceleration_g"`
	ElevatedHeartRate     int              `yaml:"elevated_heart_rate"`
}

type ValidatorWeights struct {
	Completeness float64 `yaml:"completeness"`
	Agreement    float64 `yaml:"agreement"`
	History      float64 `yaml:"history"`
}

func (w ValidatorWeights) sum() float64 {
	return w.Completeness + w.Agreement + w.History
}

type DecisionPolicy struct {
	HighConfidence             float64                              `yaml:"high_confidence"`
	NightStartHour             int                                  `yaml:"night_start_hour"`
	NightEndHour               int                                  `yaml:"night_end_hour"`
	BorderlineEscalationPoints int                                  `yaml:"borderline_escalation_points"`
	EscalateServicesAt         domain.Priority                      `yaml:"escalate_services_at"`
	Channels                   map[domain.Priority][]domain.Channel `yaml:"channels"`
}

// IsNight reports whether hour falls inside the configured night window,
// which may wrap past midnight.
func (d DecisionPolicy) IsNight(hour int) bool {
	if d.NightStartHour == d.NightEndHour {
		return false
	}
	if d.NightStartHour < d.NightEndHour {
		return hour >= d.NightStartHour && hour < d.NightEndHour
	}
	return hour >= d.NightStartHour || hour < d.NightEndHour
}

type NotificationPolicy struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
	Concurrency int           `yaml:"concurrency"`
}

type LoadedPolicy struct {
	Policy Policy
	Hash   string
	Source string
}

// Default returns the embedded policy.
func Default() Policy {
	p, err := parse(defaultPolicy)
	if err != nil {
		panic(fmt.Sprintf("embedded policy is invalid: %v", err))
	}
	return p
}

// Load reads the policy at path on top of the embedded default. An empty
// path returns the default.
func Load(path string) (LoadedPolicy, error) {
	if path == "" {
		return LoadedPolicy{Policy: Default(), Hash: digest(defaultPolicy), Source: "embedded"}, nil
	}

	// #nosec G304 -- path comes from operator-configured policy file.
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadedPolicy{}, fmt.Errorf("read policy: %w", err)
	}

	p, err := LoadBytes(data)
	if err != nil {
		return LoadedPolicy{}, err
	}

	return LoadedPolicy{Policy: p, Hash: digest(data), Source: path}, nil
}

// LoadBytes parses an override document on top of the embedded default.
func LoadBytes(data []byte) (Policy, error) {
	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid policy: %w", err)
	}
	return p, nil
}

func parse(data []byte) (Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, err
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func (p Policy) Validate() error {
	var errs []error

	a := p.Assessment
	if a.MaxAdjustment < 0 || a.MaxAdjustment > 0.5 {
		errs = append(errs, fmt.Errorf("assessment.max_adjustment must be in [0, 0.5], got %v", a.MaxAdjustment))
	}
	if !unit(a.FallbackConfidenceCap) {
		errs = append(errs, fmt.Errorf("assessment.fallback_confidence_cap must be in [0, 1]"))
	}
	w := a.ValidatorWeights
	if w.Completeness < 0 || w.Agreement < 0 || w.History < 0 || w.sum() == 0 {
		errs = append(errs, fmt.Errorf("assessment.validator_weights must be non-negative and not all zero"))
	}
	if len(a.CriticalKeywords) == 0 {
		errs = append(errs, fmt.Errorf("assessment.critical_keywords must not be empty"))
	}

	d := p.Decision
	if !unit(d.HighConfidence) {
		errs = append(errs, fmt.Errorf("decision.high_confidence must be in [0, 1]"))
	}
	if d.NightStartHour < 0 || d.NightStartHour > 23 || d.NightEndHour < 0 || d.NightEndHour > 23 {
		errs = append(errs, fmt.Errorf("decision night hours must be in [0, 23]"))
	}
	for _, prio := range []domain.Priority{domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh, domain.PriorityCritical} {
		channels := d.Channels[prio]
		if len(channels) == 0 {
			errs = append(errs, fmt.Errorf("decision.channels.%s must list at least one channel", prio))
		}
		for _, ch := range channels {
			if !ch.Valid() {
				errs = append(errs, fmt.Errorf("decision.channels.%s: unknown channel %q", prio, ch))
			}
		}
	}

	n := p.Notification
	if n.BaseDelay <= 0 || n.MaxDelay < n.BaseDelay {
		errs = append(errs, fmt.Errorf("notification delays must satisfy 0 < base_delay <= max_delay"))
	}
	if n.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("notification.max_attempts must be at least 1"))
	}
	if n.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("notification.concurrency must be at least 1"))
	}

	return errors.Join(errs...)
}

// Keywords returns the normalized keyword sets.
func (a AssessmentPolicy) Keywords() (critical, distress map[string]bool) {
	critical = make(map[string]bool, len(a.CriticalKeywords))
	for _, k := range a.CriticalKeywords {
		critical[strings.ToUpper(strings.TrimSpace(k))] = true
	}
	distress = make(map[string]bool, len(a.DistressKeywords))
	for _, k := range a.DistressKeywords {
		distress[strings.ToUpper(strings.TrimSpace(k))] = true
	}
	return critical, distress
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
