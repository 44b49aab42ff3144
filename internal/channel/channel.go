// Package channel sends one message over one notification channel. Adapters
// classify every failure as transient (worth retrying) or permanent.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

var (
	// ErrTransient marks a failure that may succeed on retry
	ErrTransient = errors.New("transient channel failure")

	// ErrPermanent marks a failure that will not succeed on retry (bad destination, opted out)
	ErrPermanent = errors.New("permanent channel failure")

	// ErrNotRegistered is returned when no adapter serves the channel
	ErrNotRegistered = errors.New("channel not registered")
)

// Message is a rendered notification
type Message struct {
	Subject string
	Body    string
}

// Adapter sends a message to a single destination and returns the provider message id
type Adapter interface {
	Channel() domain.Channel
	Send(ctx context.Context, destination string, msg Message) (string, error)
}

// Transient wraps err as retryable
func Transient(err error) error {
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Permanent wraps err as non-retryable
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsPermanent reports whether err must not be retried. Unclassified errors are treated as transient.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// Registry routes sends to the adapter registered for each channel and
// applies a per-channel throughput limit.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.Channel]Adapter
	limiters map[domain.Channel]*rate.Limiter
	disabled map[domain.Channel]bool
	perSec   float64
}

// NewRegistry creates a registry. ratePerSecond <= 0 disables throttling.
func NewRegistry(ratePerSecond float64) *Registry {
	return &Registry{
		adapters: make(map[domain.Channel]Adapter),
		limiters: make(map[domain.Channel]*rate.Limiter),
		disabled: make(map[domain.Channel]bool),
		perSec:   ratePerSecond,
	}
}

// Register adds or replaces the adapter for its channel.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := a.Channel()
	r.adapters[ch] = a
	if r.perSec > 0 {
		burst := int(r.perSec)
		if burst < 1 {
			burst = 1
		}
		r.limiters[ch] = rate.NewLimiter(rate.Limit(r.perSec), burst)
	}
}

// SetEnabled toggles a channel registration without removing the adapter.
func (r *Registry) SetEnabled(ch domain.Channel, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled[ch] = !enabled
}

// Active reports whether the channel has an enabled registration.
func (r *Registry) Active(ch domain.Channel) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[ch]
	return ok && !r.disabled[ch]
}

// Channels lists the active channels.
func (r *Registry) Channels() []domain.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Channel
	for _, ch := range []domain.Channel{domain.ChannelSMS, domain.ChannelVoice, domain.ChannelEmail} {
		if _, ok := r.adapters[ch]; ok && !r.disabled[ch] {
			out = append(out, ch)
		}
	}
	return out
}

// Send delivers msg through the adapter for ch.
func (r *Registry) Send(ctx context.Context, ch domain.Channel, destination string, msg Message) (string, error) {
	r.mu.RLock()
	adapter, ok := r.adapters[ch]
	limiter := r.limiters[ch]
	disabled := r.disabled[ch]
	r.mu.RUnlock()

	if !ok || disabled {
		return "", Permanent(fmt.Errorf("%w: %s", ErrNotRegistered, ch))
	}

	if destination == "" {
		return "", Permanent(fmt.Errorf("no %s destination", ch))
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return "", Transient(fmt.Errorf("rate limit wait: %w", err))
		}
	}

	return adapter.Send(ctx, destination, msg)
}
