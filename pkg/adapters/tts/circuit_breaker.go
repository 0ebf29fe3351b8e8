package tts

import (
	"context"
	"time"

	"github.com/harunnryd/advocate/pkg/errorsx"
	"github.com/harunnryd/advocate/pkg/metrics"
	"github.com/harunnryd/advocate/pkg/resilience"
)

// CircuitBreakerSynthesizer refuses synthesis while its breaker is open.
type CircuitBreakerSynthesizer struct {
	inner   Synthesizer
	breaker *resilience.CircuitBreaker
	obs     metrics.Observer
}

func NewCircuitBreakerSynthesizer(inner Synthesizer, breaker *resilience.CircuitBreaker) *CircuitBreakerSynthesizer {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	return &CircuitBreakerSynthesizer{inner: inner, breaker: breaker}
}

func (s *CircuitBreakerSynthesizer) Name() string { return s.inner.Name() }

func (s *CircuitBreakerSynthesizer) SetObserver(obs metrics.Observer) { s.obs = obs }

func (s *CircuitBreakerSynthesizer) Synthesize(ctx context.Context, req Request) (Audio, error) {
	ok, tr := s.breaker.Admit()
	s.transition(tr)
	if !ok {
		s.record(metrics.EventBreakerDenied, 0)
		return Audio{}, errorsx.Wrap(resilience.OpenError{Provider: s.Name(), RetryAfter: s.breaker.Remaining()}, errorsx.ReasonTTSCircuitOpen)
	}
	audio, err := s.inner.Synthesize(ctx, req)
	if err != nil {
		s.transition(s.breaker.OnError(err))
		return Audio{}, err
	}
	s.transition(s.breaker.OnSuccess())
	return audio, nil
}

func (s *CircuitBreakerSynthesizer) transition(tr resilience.Transition) {
	switch tr {
	case resilience.Opened:
		s.record(metrics.EventBreakerOpen, s.breaker.Remaining().Seconds())
	case resilience.Closed:
		s.record(metrics.EventBreakerClose, 0)
	}
}

func (s *CircuitBreakerSynthesizer) record(name string, value float64) {
	if s.obs == nil {
		return
	}
	s.obs.RecordEvent(metrics.MetricsEvent{
		Name:  name,
		Time:  time.Now(),
		Value: value,
		Tags: map[string]string{
			"provider":  s.inner.Name(),
			"component": "tts",
		},
	})
}
