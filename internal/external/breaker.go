package external

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"ordernotify/internal/types"
)

// BreakerSettings configures BreakerSender.
type BreakerSettings struct {
	Name string
	// MaxFailures is the number of consecutive provider failures that opens
	// the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before letting a probe
	// request through.
	OpenTimeout time.Duration
}

// BreakerSender wraps a PushSender with a circuit breaker. It never retries.
// A rejected device token is the recipient's problem, not the provider's, and
// does not count toward tripping the breaker.
type BreakerSender struct {
	next    types.PushSender
	breaker *gobreaker.CircuitBreaker[string]
}

var _ types.PushSender = (*BreakerSender)(nil)

// NewBreakerSender wraps next.
func NewBreakerSender(next types.PushSender, settings BreakerSettings, logger types.Logger) *BreakerSender {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || types.IsCode(err, types.ErrCodeUpstreamInvalidToken)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("push circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &BreakerSender{next: next, breaker: cb}
}

// Send delivers msg unless the breaker is open.
func (b *BreakerSender) Send(ctx context.Context, msg *types.NotificationMessage) (string, error) {
	id, err := b.breaker.Execute(func() (string, error) {
		return b.next.Send(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", types.NewAppError(types.ErrCodeUpstreamUnavailable,
			"circuit breaker is open; push provider unavailable", err)
	}
	return id, err
}

// State reports the breaker state. The listener's push_breaker probe reads it.
func (b *BreakerSender) State() gobreaker.State {
	return b.breaker.State()
}
