package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestAsyncObserverDeliversAndCloses(t *testing.T) {
	mem := NewMemoryObserver()
	async := NewAsyncObserver(mem, 8)
	for i := 0; i < 5; i++ {
		async.RecordEvent(MetricsEvent{Name: EventStageDone, Value: float64(i)})
	}
	async.Close()
	async.Wait()
	if got := len(mem.Snapshot()); got != 5 {
		t.Fatalf("expected 5 events, got %d", got)
	}
	async.RecordEvent(MetricsEvent{Name: EventRunDone})
	if got := len(mem.Named(EventRunDone)); got != 0 {
		t.Fatalf("expected events after close to be dropped, got %d", got)
	}
}

func TestAsyncObserverDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	var once sync.Once
	slow := observerFunc(func(MetricsEvent) { once.Do(func() { <-block }) })
	async := NewAsyncObserver(slow, 1)
	for i := 0; i < 10; i++ {
		async.RecordEvent(MetricsEvent{Name: EventStageDone})
	}
	close(block)
	async.Close()
	async.Wait()
	if async.Dropped() == 0 {
		t.Fatalf("expected dropped events")
	}
}

func TestAsyncObserverShutdownDeadline(t *testing.T) {
	block := make(chan struct{})
	stuck := observerFunc(func(MetricsEvent) { <-block })
	async := NewAsyncObserver(stuck, 4)
	async.RecordEvent(MetricsEvent{Name: EventRunDone})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := async.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	close(block)
	if err := async.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected clean shutdown once unblocked, got %v", err)
	}
}

func TestJSONLObserver(t *testing.T) {
	var buf bytes.Buffer
	NewJSONLObserver(&buf).RecordEvent(MetricsEvent{
		Name:  EventStageDone,
		Time:  time.Unix(0, 0),
		Value: 12,
		Tags:  map[string]string{"stage": "text_gen"},
	})
	var rec struct {
		Event string            `json:"event"`
		TS    time.Time         `json:"ts"`
		Value float64           `json:"value"`
		Tags  map[string]string `json:"tags"`
		Level string            `json:"level"`
		Msg   *string           `json:"msg"`
	}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json line %q: %v", buf.String(), err)
	}
	if rec.Event != EventStageDone || rec.Tags["stage"] != "text_gen" || rec.Value != 12 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.TS.Equal(time.Unix(0, 0)) {
		t.Fatalf("ts = %v, want event time", rec.TS)
	}
	if rec.Level != "" || rec.Msg != nil {
		t.Fatalf("handler builtins leaked into %q", buf.String())
	}
}

type observerFunc func(MetricsEvent)

func (f observerFunc) RecordEvent(ev MetricsEvent) { f(ev) }
