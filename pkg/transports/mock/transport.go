package mock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/harunnryd/advocate/pkg/intake"
	"github.com/harunnryd/advocate/pkg/pipeline"
	"github.com/harunnryd/advocate/pkg/presenter"
)

// Submission is one inbound trigger.
type Submission struct {
	SessionID string
	Intake    intake.PatientIntake
}

// Result pairs a submission with the view the user would see.
type Result struct {
	SessionID string
	Outcome   pipeline.Outcome
	View      presenter.View
}

// Transport is an in-memory transport for local testing and integration.
// It implements the transports.Transport interface without any network dependency.
type Transport struct {
	registry *pipeline.SessionRegistry
	opts     presenter.Options
	sentCh   chan Result
	closed   atomic.Bool
	mu       sync.RWMutex
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(registry *pipeline.SessionRegistry, opts presenter.Options) *Transport {
	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		registry: registry,
		opts:     opts,
		sentCh:   make(chan Result, 256),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (t *Transport) Name() string { return "mock" }

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		select {
		case <-ctx.Done():
			_ = t.Stop()
		case <-t.ctx.Done():
		}
	}()
	return nil
}

// Stop waits for pushed runs to finish before closing Sent.
func (t *Transport) Stop() error {
	if t.closed.CompareAndSwap(false, true) {
		// Pushes holding the read lock finish registering first.
		t.mu.Lock()
		t.mu.Unlock()
		t.wg.Wait()
		t.cancel()
		close(t.sentCh)
	}
	return nil
}

// Push triggers a run for the submission's session. It returns false once
// the transport is stopped or the registry is draining.
func (t *Transport) Push(sub Submission) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed.Load() || t.registry.Draining() {
		return false
	}
	sess, _ := t.registry.GetOrCreate(sub.SessionID)
	if sess == nil {
		return false
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		out := sess.Trigger(t.ctx, sub.Intake)
		select {
		case t.sentCh <- Result{SessionID: sub.SessionID, Outcome: out, View: presenter.Present(out, t.opts)}:
		default:
		}
	}()
	return true
}

// Sent exposes presented results for inspection.
func (t *Transport) Sent() <-chan Result { return t.sentCh }
