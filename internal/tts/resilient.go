package tts

import (
	"context"
	"errors"

	"github.com/lexiqai/live-tutor/internal/observability"
	"github.com/lexiqai/live-tutor/internal/resilience"
)

// ResilientSynthesizer retries transient synthesis failures and stops calling
// the provider while its circuit is open.
type ResilientSynthesizer struct {
	next    Synthesizer
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryConfig
}

// NewResilientSynthesizer wraps next. A nil breaker or retry config disables
// that layer.
func NewResilientSynthesizer(next Synthesizer, breaker *resilience.CircuitBreaker, retry *resilience.RetryConfig) *ResilientSynthesizer {
	if retry == nil {
		retry = &resilience.RetryConfig{MaxAttempts: 1}
	}
	return &ResilientSynthesizer{next: next, breaker: breaker, retry: retry}
}

func (r *ResilientSynthesizer) Synthesize(ctx context.Context, text string) (*Speech, error) {
	var speech *Speech
	err := resilience.Retry(ctx, func(ctx context.Context) error {
		attempt := func() error {
			s, err := r.next.Synthesize(ctx, text)
			if err != nil {
				return err
			}
			speech = s
			return nil
		}
		if r.breaker == nil {
			return attempt()
		}

		err := r.breaker.Call(attempt)
		observability.UpdateCircuitBreakerState(r.breaker.Name(), int(r.breaker.GetState()))
		if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
			observability.IncrementCircuitBreakerFailures(r.breaker.Name())
		}
		return err
	}, r.retry, resilience.IsRetryableNetworkError)
	if err != nil {
		observability.RecordError("synthesis", "tts")
		return nil, err
	}
	return speech, nil
}
