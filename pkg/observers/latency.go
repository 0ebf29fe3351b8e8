package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/advocate/pkg/metrics"
)

// LatencyObserver folds per-stage timings into one summary line per run.
type LatencyObserver struct {
	mu   sync.Mutex
	runs map[string]*runTimings
	log  *slog.Logger
}

type runTimings struct {
	textGen   time.Duration
	speechGen time.Duration
	seenText  bool
	seenVoice bool
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		runs: make(map[string]*runTimings),
		log:  log,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	runID := ev.Tags["run_id"]
	if runID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	t := o.runs[runID]
	if t == nil {
		t = &runTimings{}
		o.runs[runID] = t
	}
	switch ev.Name {
	case metrics.EventStageDone:
		d := time.Duration(ev.Value * float64(time.Millisecond))
		switch ev.Tags["stage"] {
		case "text_gen":
			t.textGen, t.seenText = d, true
		case "speech_gen":
			t.speechGen, t.seenVoice = d, true
		}
	case metrics.EventRunDone:
		o.log.Info("latency",
			"run_id", runID,
			"outcome", ev.Tags["outcome"],
			"text_gen_ms", durationMs(t.textGen, t.seenText),
			"speech_gen_ms", durationMs(t.speechGen, t.seenVoice),
			"total_ms", int64(ev.Value),
		)
		delete(o.runs, runID)
	}
}

// Pending reports how many runs have stage timings without a run summary.
func (o *LatencyObserver) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.runs)
}

func durationMs(d time.Duration, seen bool) int64 {
	if !seen {
		return -1
	}
	return d.Milliseconds()
}
