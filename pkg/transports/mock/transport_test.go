package mock

import (
	"context"
	"testing"
	"time"

	"github.com/harunnryd/advocate/pkg/adapters/tts"
	"github.com/harunnryd/advocate/pkg/intake"
	"github.com/harunnryd/advocate/pkg/llm"
	"github.com/harunnryd/advocate/pkg/pipeline"
	"github.com/harunnryd/advocate/pkg/presenter"
	providers "github.com/harunnryd/advocate/pkg/providers/mock"
)

func newRegistry() *pipeline.SessionRegistry {
	return pipeline.NewSessionRegistry(pipeline.New(pipeline.Options{
		Text: pipeline.TextStage{Build: func(string) (llm.LLMAdapter, error) {
			return providers.NewLLMAdapter(providers.LLMConfig{ResponseText: "report"}), nil
		}},
		Speech: pipeline.SpeechStage{Build: func(string) (tts.Synthesizer, error) {
			return providers.NewTTS(providers.TTSConfig{}), nil
		}},
	}))
}

func TestTransportPushPresentsOutcome(t *testing.T) {
	tr := New(newRegistry(), presenter.Options{})
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	ok := tr.Push(Submission{SessionID: "s1", Intake: intake.PatientIntake{
		Pain:     intake.PainSevere,
		Duration: intake.DurationNew,
		Goal:     intake.GoalReferral,
	}})
	if !ok {
		t.Fatal("push refused")
	}
	select {
	case res := <-tr.Sent():
		if res.SessionID != "s1" || res.View.Status != presenter.StatusSuccess || res.View.ReportText != "report" {
			t.Fatalf("unexpected result: %+v", res.View)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
	}
}

func TestTransportPushValidationError(t *testing.T) {
	tr := New(newRegistry(), presenter.Options{})
	tr.Push(Submission{SessionID: "s1"})
	res := <-tr.Sent()
	if res.Outcome.Kind != pipeline.KindValidationError {
		t.Fatalf("expected validation error, got %s", res.Outcome.Kind)
	}
}

func TestTransportStopRefusesPush(t *testing.T) {
	tr := New(newRegistry(), presenter.Options{})
	if err := tr.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if tr.Push(Submission{SessionID: "s1"}) {
		t.Fatal("push accepted after stop")
	}
	if _, open := <-tr.Sent(); open {
		t.Fatal("sent channel still open")
	}
}
