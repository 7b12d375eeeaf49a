package ai

import (
	"context"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerService guards a ClassifierService with a circuit breaker so a
// provider that keeps failing is skipped until it has had time to recover.
type BreakerService struct {
	inner ClassifierService
	cb    *gobreaker.CircuitBreaker
}

// BreakerSettings tunes the breaker. Zero values use the defaults.
type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// NewBreakerService wraps svc with default breaker settings
func NewBreakerService(svc ClassifierService) *BreakerService {
	return NewBreakerServiceWithSettings(svc, BreakerSettings{})
}

// NewBreakerServiceWithSettings wraps svc with the given breaker settings
func NewBreakerServiceWithSettings(svc ClassifierService, s BreakerSettings) *BreakerService {
	if s.Name == "" {
		s.Name = "ai-classifier"
	}
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	threshold := s.ConsecutiveFailures

	settings := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &BreakerService{
		inner: svc,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

// ClassifyEmail implements ClassifierService. While the breaker is open the
// call fails fast with gobreaker.ErrOpenState.
func (b *BreakerService) ClassifyEmail(ctx context.Context, prompt string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.ClassifyEmail(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// State reports the breaker state as a string (closed, half-open, open)
func (b *BreakerService) State() string {
	return b.cb.State().String()
}
