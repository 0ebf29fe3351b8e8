package errorsx

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonLLMGenerate)
	if Reason(err) != ReasonLLMGenerate {
		t.Fatalf("expected reason %s, got %s", ReasonLLMGenerate, Reason(err))
	}
	if !HasReason(err, ReasonLLMGenerate) {
		t.Fatalf("expected HasReason true")
	}
	if !errors.As(err, new(assertErr)) {
		t.Fatalf("expected cause to stay reachable")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonLLMAuth)
	second := Wrap(fmt.Errorf("groq: %w", first), ReasonLLMGenerate)
	if Reason(second) != ReasonLLMAuth {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestReasonSurvivesFmtWrap(t *testing.T) {
	err := fmt.Errorf("elevenlabs: %w", Wrap(assertErr{}, ReasonTTSConnect))
	if Reason(err) != ReasonTTSConnect {
		t.Fatalf("expected reason %s, got %s", ReasonTTSConnect, Reason(err))
	}
	if err.Error() != "elevenlabs: boom" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestWrapfFormatsMessage(t *testing.T) {
	err := Wrapf(ReasonLLMMalformed, "no choices in %s response", "openai")
	if err.Error() != "no choices in openai response" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if Reason(err) != ReasonLLMMalformed {
		t.Fatalf("expected reason %s, got %s", ReasonLLMMalformed, Reason(err))
	}
}

func TestWrapfKeepsWrappedCause(t *testing.T) {
	err := Wrapf(ReasonTTSTimeout, "gtts: %w", context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline to be reachable through %v", err)
	}
}

func TestReasonNil(t *testing.T) {
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown reason for nil")
	}
	if Wrap(nil, ReasonLLMAuth) != nil {
		t.Fatalf("expected nil passthrough")
	}
}

func TestReasonClasses(t *testing.T) {
	cases := map[ReasonCode]Class{
		ReasonIntakeIncomplete:  ClassInput,
		ReasonMissingCredential: ClassConfig,
		ReasonTTSAuth:           ClassAuth,
		ReasonLLMRateLimit:      ClassThrottled,
		ReasonTTSCircuitOpen:    ClassThrottled,
		ReasonLLMCircuitOpen:    ClassThrottled,
		ReasonLLMTimeout:        ClassTimeout,
		ReasonTTSEmptyAudio:     ClassMalformed,
		ReasonTTSConnect:        ClassUpstream,
		ReasonUnknown:           ClassUpstream,
	}
	for reason, want := range cases {
		if got := reason.Class(); got != want {
			t.Errorf("%s: class %s, want %s", reason, got, want)
		}
	}
	if ClassOf(Wrap(assertErr{}, ReasonTTSTimeout)) != ClassTimeout {
		t.Fatalf("ClassOf should follow the wrapped reason")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
