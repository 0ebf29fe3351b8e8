package llm

import (
	"context"
	"time"

	"github.com/harunnryd/advocate/pkg/errorsx"
	"github.com/harunnryd/advocate/pkg/metrics"
	"github.com/harunnryd/advocate/pkg/resilience"
)

// CircuitBreakerAdapter wraps an LLMAdapter with rate-limit circuit breaking.
// While open it rejects calls without contacting the provider. Wrappers are
// cheap; breaker state is held by the shared resilience.CircuitBreaker.
type CircuitBreakerAdapter struct {
	inner   LLMAdapter
	breaker *resilience.CircuitBreaker
	obs     metrics.Observer
}

func NewCircuitBreakerAdapter(inner LLMAdapter, breaker *resilience.CircuitBreaker) *CircuitBreakerAdapter {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	return &CircuitBreakerAdapter{inner: inner, breaker: breaker}
}

func (a *CircuitBreakerAdapter) Name() string { return a.inner.Name() }

// SetObserver allows metrics emission for breaker events.
func (a *CircuitBreakerAdapter) SetObserver(obs metrics.Observer) { a.obs = obs }

func (a *CircuitBreakerAdapter) Generate(ctx context.Context, input Context) (Response, error) {
	ok, tr := a.breaker.Admit()
	a.transition(tr)
	if !ok {
		a.record(metrics.EventBreakerDenied, 0)
		return Response{}, errorsx.Wrap(resilience.OpenError{Provider: a.Name(), RetryAfter: a.breaker.Remaining()}, errorsx.ReasonLLMCircuitOpen)
	}
	resp, err := a.inner.Generate(ctx, input)
	if err != nil {
		a.transition(a.breaker.OnError(err))
		return Response{}, err
	}
	a.transition(a.breaker.OnSuccess())
	return resp, nil
}

func (a *CircuitBreakerAdapter) transition(tr resilience.Transition) {
	switch tr {
	case resilience.Opened:
		a.record(metrics.EventBreakerOpen, a.breaker.Remaining().Seconds())
	case resilience.Closed:
		a.record(metrics.EventBreakerClose, 0)
	}
}

func (a *CircuitBreakerAdapter) record(name string, value float64) {
	if a.obs == nil {
		return
	}
	a.obs.RecordEvent(metrics.MetricsEvent{
		Name:  name,
		Time:  time.Now(),
		Value: value,
		Tags: map[string]string{
			"provider":  a.inner.Name(),
			"component": "llm",
		},
	})
}
