package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/harunnryd/advocate/pkg/adapters/tts"
	"github.com/harunnryd/advocate/pkg/llm"
)

func TestLLMAdapterCountsCalls(t *testing.T) {
	a := NewLLMAdapter(LLMConfig{ResponseText: "report"})
	resp, err := a.Generate(context.Background(), llm.Context{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "report" || a.Calls() != 1 {
		t.Fatalf("unexpected response %+v calls=%d", resp, a.Calls())
	}
	in, ok := a.LastInput()
	if !ok || in.Messages[0].Content != "hi" {
		t.Fatalf("expected recorded input")
	}
}

func TestLLMAdapterError(t *testing.T) {
	boom := errors.New("boom")
	a := NewLLMAdapter(LLMConfig{Err: boom})
	if _, err := a.Generate(context.Background(), llm.Context{}); !errors.Is(err, boom) {
		t.Fatalf("expected configured error, got %v", err)
	}
}

func TestTTSDefaultStub(t *testing.T) {
	s := NewTTS(TTSConfig{})
	audio, err := s.Synthesize(context.Background(), tts.Request{Text: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(audio.Bytes) != 10 || audio.MIMEType != tts.MIMETypeMPEG {
		t.Fatalf("unexpected audio %d %q", len(audio.Bytes), audio.MIMEType)
	}
	if s.Calls() != 1 || s.Requests()[0].Text != "hello" {
		t.Fatalf("expected recorded request")
	}
}

func TestTTSRejectsEmptyText(t *testing.T) {
	if _, err := NewTTS(TTSConfig{}).Synthesize(context.Background(), tts.Request{}); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

func TestTTSCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewTTS(TTSConfig{}).Synthesize(ctx, tts.Request{Text: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
