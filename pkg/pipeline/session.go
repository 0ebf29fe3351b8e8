package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/harunnryd/advocate/pkg/intake"
)

// Session serializes triggers from one user. A new trigger cancels the run
// in flight and only the newest run's result counts: older results come back
// with Superseded set and must not be shown.
type Session struct {
	ID      string
	Created time.Time

	p   *Pipeline
	reg *SessionRegistry

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	inflight int
	lastUsed time.Time
	retired  bool
}

func NewSession(id string, p *Pipeline) *Session {
	now := time.Now()
	return &Session{ID: id, Created: now, p: p, lastUsed: now}
}

// Trigger starts a fresh run for in and blocks until it finishes. A session
// already removed from its registry hands the run to a freshly registered
// session with the same ID, so drain accounting still sees it.
func (s *Session) Trigger(ctx context.Context, in intake.PatientIntake) Outcome {
	s.mu.Lock()
	if s.retired && s.reg != nil {
		s.mu.Unlock()
		fresh, _ := s.reg.GetOrCreate(s.ID)
		return fresh.Trigger(ctx, in)
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.gen++
	gen := s.gen
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.inflight++
	s.lastUsed = time.Now()
	s.mu.Unlock()

	out := s.p.Run(runCtx, in)

	s.mu.Lock()
	s.inflight--
	if gen != s.gen {
		out.Superseded = true
	} else {
		s.cancel = nil
	}
	s.lastUsed = time.Now()
	s.mu.Unlock()

	if out.Superseded {
		s.p.log.Info("report_run_superseded", "session_id", s.ID, "run_id", out.RunID)
	}
	return out
}

// Generation is the number of triggers seen so far.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// InFlight is the number of runs that have not returned yet.
func (s *Session) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight
}

// Cancel aborts the current run, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
