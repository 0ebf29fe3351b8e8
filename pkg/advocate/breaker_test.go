package advocate

import (
	"context"
	"testing"
	"time"

	"github.com/harunnryd/advocate/pkg/adapters/tts"
	"github.com/harunnryd/advocate/pkg/errorsx"
	"github.com/harunnryd/advocate/pkg/llm"
	"github.com/harunnryd/advocate/pkg/metrics"
	"github.com/harunnryd/advocate/pkg/pipeline"
	"github.com/harunnryd/advocate/pkg/providers/mock"
	"github.com/harunnryd/advocate/pkg/resilience"
)

func TestTextBreakerEventsAcrossRuns(t *testing.T) {
	limited := errorsx.Wrap(resilience.RateLimitError{Provider: "mock_llm"}, errorsx.ReasonLLMRateLimit)
	inner := mock.NewLLMAdapter(mock.LLMConfig{Err: limited})
	obs := metrics.NewMemoryObserver()
	build := withTextBreaker(func(string) (llm.LLMAdapter, error) { return inner, nil },
		resilience.NewCircuitBreaker(2, time.Minute), obs)

	p := pipeline.New(pipeline.Options{
		Text: pipeline.TextStage{Build: build},
		Speech: pipeline.SpeechStage{Build: func(string) (tts.Synthesizer, error) {
			return mock.NewTTS(mock.TTSConfig{}), nil
		}},
		Observer: obs,
	})

	var last pipeline.Outcome
	for i := 0; i < 5; i++ {
		last = p.Run(context.Background(), sampleIntake())
	}

	counts := map[string]int{}
	for _, ev := range obs.Snapshot() {
		counts[ev.Name]++
	}
	if counts[metrics.EventBreakerOpen] != 1 {
		t.Fatalf("breaker_open = %d, want 1 (%v)", counts[metrics.EventBreakerOpen], counts)
	}
	if counts[metrics.EventBreakerDenied] != 3 {
		t.Fatalf("breaker_denied = %d, want 3 (%v)", counts[metrics.EventBreakerDenied], counts)
	}
	if counts[metrics.EventRateLimit] != 2 {
		t.Fatalf("provider_rate_limit = %d, want one per provider 429 (%v)", counts[metrics.EventRateLimit], counts)
	}
	if inner.Calls() != 2 {
		t.Fatalf("provider calls = %d, want 2", inner.Calls())
	}
	if last.Reason != errorsx.ReasonLLMCircuitOpen || last.RetryAfter <= 0 {
		t.Fatalf("denied run outcome = %+v", last)
	}
}

func TestSpeechBreakerClosesAfterSuccess(t *testing.T) {
	breaker := resilience.NewCircuitBreaker(1, 100*time.Millisecond)
	obs := metrics.NewMemoryObserver()
	fail := true
	build := withSpeechBreaker(func(string) (tts.Synthesizer, error) {
		if fail {
			return mock.NewTTS(mock.TTSConfig{Err: resilience.RateLimitError{Provider: "mock_tts"}}), nil
		}
		return mock.NewTTS(mock.TTSConfig{}), nil
	}, breaker, obs)

	synth := func() error {
		s, err := build("")
		if err != nil {
			return err
		}
		_, err = s.Synthesize(context.Background(), tts.Request{Text: "x"})
		return err
	}

	_ = synth()
	if err := synth(); !resilience.IsOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	fail = false
	if err := synth(); err != nil {
		t.Fatalf("expected trial call to pass, got %v", err)
	}
	if n := len(obs.Named(metrics.EventBreakerOpen)); n != 1 {
		t.Fatalf("breaker_open = %d, want 1", n)
	}
	if n := len(obs.Named(metrics.EventBreakerClose)); n != 1 {
		t.Fatalf("breaker_close = %d, want 1", n)
	}
}
