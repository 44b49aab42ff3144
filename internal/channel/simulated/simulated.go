// Package simulated provides a channel adapter that records messages instead
// of sending them. It backs SIMULATION_MODE and the notification tests.
package simulated

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/guardian/internal/channel"
	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

// Sent is a recorded message
type Sent struct {
	Destination string
	Message     channel.Message
	MessageID   string
	At          time.Time
}

type failure struct {
	permanent bool
	remaining int
}

// Adapter records every send and can be scripted to fail per destination.
type Adapter struct {
	ch       domain.Channel
	mu       sync.Mutex
	sent     []Sent
	attempts map[string]int
	failures map[string]*failure
	delay    time.Duration
}

// New creates a simulated adapter for ch.
func New(ch domain.Channel) *Adapter {
	return &Adapter{
		ch:       ch,
		attempts: make(map[string]int),
		failures: make(map[string]*failure),
	}
}

// FailPermanently makes every send to destination fail without retry.
func (a *Adapter) FailPermanently(destination string) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[destination] = &failure{permanent: true}
	return a
}

// FailTransiently makes the next n sends to destination fail with a retryable error.
// n < 0 fails forever.
func (a *Adapter) FailTransiently(destination string, n int) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[destination] = &failure{remaining: n}
	return a
}

// WithDelay makes each send block for d or until ctx is done.
func (a *Adapter) WithDelay(d time.Duration) *Adapter {
	a.delay = d
	return a
}

func (a *Adapter) Channel() domain.Channel {
	return a.ch
}

func (a *Adapter) Send(ctx context.Context, destination string, msg channel.Message) (string, error) {
	if a.delay > 0 {
		select {
		case <-ctx.Done():
			return "", channel.Transient(ctx.Err())
		case <-time.After(a.delay):
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.attempts[destination]++

	if f, ok := a.failures[destination]; ok {
		if f.permanent {
			return "", channel.Permanent(errors.New("invalid destination"))
		}
		if f.remaining != 0 {
			if f.remaining > 0 {
				f.remaining--
			}
			return "", channel.Transient(errors.New("provider unavailable"))
		}
	}

	id := "sim-" + uuid.NewString()
	a.sent = append(a.sent, Sent{Destination: destination, Message: msg, MessageID: id, At: time.Now()})
	return id, nil
}

// Sent returns the recorded messages.
func (a *Adapter) Sent() []Sent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Sent, len(a.sent))
	copy(out, a.sent)
	return out
}

// Attempts returns how many sends were tried for destination.
func (a *Adapter) Attempts(destination string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attempts[destination]
}

var _ channel.Adapter = (*Adapter)(nil)
