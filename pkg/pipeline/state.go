package pipeline

import (
	"sync"
	"time"
)

// State is the lifecycle position of one pipeline invocation.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateAwaitingTextGen
	StateAwaitingSpeechGen
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateValidating:
		return "VALIDATING"
	case StateAwaitingTextGen:
		return "AWAITING_TEXT_GEN"
	case StateAwaitingSpeechGen:
		return "AWAITING_SPEECH_GEN"
	case StateSucceeded:
		return "SUCCEEDED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether s ends an invocation.
func (s State) Terminal() bool { return s == StateSucceeded || s == StateFailed }

// StateChange represents a state transition event.
type StateChange struct {
	RunID     string
	FromState State
	ToState   State
	Timestamp time.Time
	Reason    string
}

// StateListener observes pipeline state changes.
type StateListener interface {
	OnStateChange(event StateChange)
}

// StateListenerFunc adapts a function to StateListener.
type StateListenerFunc func(StateChange)

func (f StateListenerFunc) OnStateChange(event StateChange) { f(event) }

var validTransitions = map[State][]State{
	StateIdle:              {StateValidating},
	StateValidating:        {StateFailed, StateAwaitingTextGen},
	StateAwaitingTextGen:   {StateFailed, StateAwaitingSpeechGen},
	StateAwaitingSpeechGen: {StateFailed, StateSucceeded},
	StateSucceeded:         {StateIdle},
	StateFailed:            {StateIdle},
}

// stateMachine tracks one invocation. Terminal states only leave through
// Reset, which models the next user trigger.
type stateMachine struct {
	mu        sync.Mutex
	runID     string
	current   State
	listeners []StateListener
}

func newStateMachine(runID string, listeners []StateListener) *stateMachine {
	return &stateMachine{runID: runID, current: StateIdle, listeners: listeners}
}

func (m *stateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func transitionValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves to a new state with validation.
func (m *stateMachine) Transition(to State, reason string) error {
	m.mu.Lock()
	from := m.current
	if !transitionValid(from, to) {
		m.mu.Unlock()
		return &InvalidTransitionError{From: from, To: to}
	}
	m.current = to
	listeners := append([]StateListener(nil), m.listeners...)
	m.mu.Unlock()

	event := StateChange{
		RunID:     m.runID,
		FromState: from,
		ToState:   to,
		Timestamp: time.Now(),
		Reason:    reason,
	}
	for _, l := range listeners {
		l.OnStateChange(event)
	}
	return nil
}

// Reset returns a terminal machine to Idle.
func (m *stateMachine) Reset() error {
	return m.Transition(StateIdle, "reset")
}

// InvalidTransitionError represents an invalid state transition attempt.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}
