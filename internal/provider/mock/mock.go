package mock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
	"github.com/saturnino-fabrica-de-software/guardian/internal/provider"
)

// Oracle implementa provider.InferenceOracle para testes e desenvolvimento
type Oracle struct {
	mu     sync.Mutex
	result *provider.InferenceResult
	err    error
	delay  time.Duration
	calls  []provider.InferenceRequest
}

// Option configura o Oracle
type Option func(*Oracle)

// WithResult fixa o veredito retornado em toda chamada
func WithResult(level domain.ThreatLevel, confidence float64, rationale string) Option {
	return func(o *Oracle) {
		o.result = &provider.InferenceResult{ThreatLevel: level, Confidence: confidence, Rationale: rationale}
	}
}

// WithError faz toda chamada falhar com err
func WithError(err error) Option {
	return func(o *Oracle) {
		o.err = err
	}
}

// WithDelay simula latência; respeita o deadline do contexto
func WithDelay(d time.Duration) Option {
	return func(o *Oracle) {
		o.delay = d
	}
}

// New cria uma nova instância do Oracle
func New(opts ...Option) *Oracle {
	o := &Oracle{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Oracle) Name() string {
	return "mock"
}

// Assess retorna o veredito configurado ou um veredito determinístico baseado nas palavras detectadas
func (o *Oracle) Assess(ctx context.Context, req provider.InferenceRequest) (*provider.InferenceResult, error) {
	o.mu.Lock()
	o.calls = append(o.calls, req)
	o.mu.Unlock()

	if o.delay > 0 {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, provider.ErrOracleTimeout
			}
			return nil, ctx.Err()
		case <-time.After(o.delay):
		}
	}

	if o.err != nil {
		return nil, o.err
	}

	if o.result != nil {
		r := *o.result
		return &r, nil
	}

	return deterministicVerdict(req), nil
}

// Calls retorna as requisições recebidas
func (o *Oracle) Calls() []provider.InferenceRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]provider.InferenceRequest, len(o.calls))
	copy(out, o.calls)
	return out
}

func deterministicVerdict(req provider.InferenceRequest) *provider.InferenceResult {
	if req.Audio == nil {
		return &provider.InferenceResult{ThreatLevel: domain.ThreatNone, Confidence: 0.2, Rationale: "no audio context"}
	}

	text := strings.ToUpper(req.Audio.Transcript + " " + strings.Join(req.Audio.Keywords, " "))
	switch {
	case strings.Contains(text, "HELP") || strings.Contains(text, "911") || strings.Contains(text, "EMERGENCY"):
		return &provider.InferenceResult{ThreatLevel: domain.ThreatCritical, Confidence: 0.92, Rationale: "explicit call for help"}
	case strings.Contains(text, "DANGER") || strings.Contains(text, "ATTACK"):
		return &provider.InferenceResult{ThreatLevel: domain.ThreatHigh, Confidence: 0.8, Rationale: "distress language"}
	case req.Audio.PeakDB >= 90:
		return &provider.InferenceResult{ThreatLevel: domain.ThreatMedium, Confidence: 0.6, Rationale: "sudden loud noise"}
	default:
		return &provider.InferenceResult{ThreatLevel: domain.ThreatLow, Confidence: 0.4, Rationale: "no distress indicators"}
	}
}

var _ provider.InferenceOracle = (*Oracle)(nil)
