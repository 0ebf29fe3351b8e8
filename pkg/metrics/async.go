package metrics

import (
	"context"
	"sync"
	"sync/atomic"
)

// AsyncObserver hands events to a slow observer on its own goroutine so the
// report pipeline never blocks on metrics. A full buffer drops the event.
type AsyncObserver struct {
	inner   Observer
	events  chan MetricsEvent
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsyncObserver(inner Observer, buffer int) *AsyncObserver {
	if inner == nil {
		inner = NoopObserver{}
	}
	if buffer <= 0 {
		buffer = 256
	}
	a := &AsyncObserver{
		inner:  inner,
		events: make(chan MetricsEvent, buffer),
		done:   make(chan struct{}),
	}
	go a.deliver()
	return a
}

func (a *AsyncObserver) RecordEvent(ev MetricsEvent) {
	if a == nil {
		return
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.events <- ev:
	default:
		a.dropped.Add(1)
	}
}

// Dropped counts events lost to a full buffer.
func (a *AsyncObserver) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events. Buffered events are still delivered.
func (a *AsyncObserver) Close() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
}

// Wait blocks until every buffered event has been delivered after Close.
func (a *AsyncObserver) Wait() {
	if a == nil {
		return
	}
	<-a.done
}

// Shutdown closes the observer and waits for the buffer to drain, giving up
// when ctx ends.
func (a *AsyncObserver) Shutdown(ctx context.Context) error {
	if a == nil {
		return nil
	}
	a.Close()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *AsyncObserver) deliver() {
	defer close(a.done)
	for ev := range a.events {
		a.inner.RecordEvent(ev)
	}
}
