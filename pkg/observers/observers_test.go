package observers

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/harunnryd/advocate/pkg/metrics"
)

func TestLatencyObserverSummarisesRun(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLatencyObserver(slog.New(slog.NewTextHandler(&buf, nil)))
	tags := func(stage string) map[string]string {
		return map[string]string{"run_id": "r1", "stage": stage}
	}
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventStageDone, Value: 120, Tags: tags("text_gen")})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventStageDone, Value: 80, Tags: tags("speech_gen")})
	if obs.Pending() != 1 {
		t.Fatalf("expected one pending run")
	}
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventRunDone, Value: 210, Tags: map[string]string{"run_id": "r1", "outcome": "success"}})

	out := buf.String()
	for _, want := range []string{"text_gen_ms=120", "speech_gen_ms=80", "total_ms=210", "outcome=success"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
	if obs.Pending() != 0 {
		t.Fatalf("expected run to be cleared")
	}
}

func TestLatencyObserverMissingStage(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLatencyObserver(slog.New(slog.NewTextHandler(&buf, nil)))
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventRunDone, Tags: map[string]string{"run_id": "r2"}})
	if !strings.Contains(buf.String(), "speech_gen_ms=-1") {
		t.Fatalf("expected -1 for missing stage, got %q", buf.String())
	}
}

func TestMultiObserverFansOut(t *testing.T) {
	a, b := metrics.NewMemoryObserver(), metrics.NewMemoryObserver()
	NewMultiObserver(a, nil, b).RecordEvent(metrics.MetricsEvent{Name: "x"})
	if len(a.Snapshot()) != 1 || len(b.Snapshot()) != 1 {
		t.Fatalf("expected fan out to both observers")
	}
}

func TestLoggerObserverLevels(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLoggerObserver(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventStageDone, Value: 12, Tags: map[string]string{"stage": "text_gen", "status": "ok"}})
	if buf.Len() != 0 {
		t.Fatalf("successful stage should log at debug, got %q", buf.String())
	}

	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventBreakerOpen, Tags: map[string]string{"stage": "speech_gen"}})
	out := buf.String()
	for _, want := range []string{"level=WARN", "msg=breaker_open", "component=events", "stage=speech_gen"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
	if strings.Contains(out, "value=") {
		t.Fatalf("zero value should be omitted: %q", out)
	}
}
