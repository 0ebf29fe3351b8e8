package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// SessionRegistry maps session IDs to Sessions sharing one Pipeline.
type SessionRegistry struct {
	sessions sync.Map
	count    atomic.Int64
	pipeline *Pipeline
	draining atomic.Bool
}

func NewSessionRegistry(p *Pipeline) *SessionRegistry {
	return &SessionRegistry{pipeline: p}
}

// GetOrCreate returns the session for id, creating it on first use. The
// boolean reports whether a new session was created.
func (r *SessionRegistry) GetOrCreate(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	if v, ok := r.sessions.Load(id); ok {
		return v.(*Session), false
	}
	sess := NewSession(id, r.pipeline)
	sess.reg = r
	actual, loaded := r.sessions.LoadOrStore(id, sess)
	if loaded {
		return actual.(*Session), false
	}
	r.count.Add(1)
	return sess, true
}

func (r *SessionRegistry) Get(id string) (*Session, bool) {
	if v, ok := r.sessions.Load(id); ok {
		return v.(*Session), true
	}
	return nil, false
}

// Remove retires the session for id and cancels its run, if any.
func (r *SessionRegistry) Remove(id string) {
	if v, ok := r.sessions.Load(id); ok {
		r.retire(id, v.(*Session), func(*Session) bool { return true })
	}
}

// retire drops sess from the registry when keep returns true. The check and
// the delete happen under sess.mu, so a concurrent Trigger either registers
// its run first (and keep sees it) or finds the session retired.
func (r *SessionRegistry) retire(id string, sess *Session, keep func(*Session) bool) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.retired || !keep(sess) {
		return false
	}
	if !r.sessions.CompareAndDelete(id, sess) {
		return false
	}
	sess.retired = true
	if sess.cancel != nil {
		sess.cancel()
		sess.cancel = nil
	}
	r.count.Add(-1)
	return true
}

func (r *SessionRegistry) CloseAll() {
	r.sessions.Range(func(key, value any) bool {
		if id, ok := key.(string); ok {
			r.Remove(id)
		}
		return true
	})
}

// Sweep removes sessions with no run in flight that have been idle for at
// least maxIdle. It returns how many were removed.
func (r *SessionRegistry) Sweep(maxIdle time.Duration) int {
	now := time.Now()
	removed := 0
	idle := func(sess *Session) bool {
		return sess.inflight == 0 && now.Sub(sess.lastUsed) >= maxIdle
	}
	r.sessions.Range(func(key, value any) bool {
		if r.retire(key.(string), value.(*Session), idle) {
			removed++
		}
		return true
	})
	return removed
}

func (r *SessionRegistry) Count() int64 {
	return r.count.Load()
}

// InFlight sums the runs still executing across all sessions.
func (r *SessionRegistry) InFlight() int {
	total := 0
	r.sessions.Range(func(_, value any) bool {
		total += value.(*Session).InFlight()
		return true
	})
	return total
}

func (r *SessionRegistry) SetDraining(v bool) {
	r.draining.Store(v)
}

func (r *SessionRegistry) Draining() bool {
	return r.draining.Load()
}

// WaitForIdle blocks until no run is in flight or ctx ends.
func (r *SessionRegistry) WaitForIdle(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if r.InFlight() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
