// Package channel defines the realtime link to the messaging agent.
package channel

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"whatsapp-service/internal/domain"
)

// Channel is one open bidirectional event stream. Events emits
// domain.EventChannelOpened first and domain.EventChannelClosed last, then
// is closed.
type Channel interface {
	Events() <-chan domain.Event
	Send(ctx context.Context, cmd domain.Command) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}

type DialFunc func(ctx context.Context) (Channel, error)

func (f DialFunc) Dial(ctx context.Context) (Channel, error) {
	return f(ctx)
}

// NewBackoff returns the reconnect policy: exponential from minWait up to
// maxWait with light jitter, never giving up.
func NewBackoff(minWait, maxWait time.Duration) *backoff.ExponentialBackOff {
	if minWait <= 0 {
		minWait = time.Second
	}
	if maxWait < minWait {
		maxWait = minWait
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = minWait
	b.MaxInterval = maxWait
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
