package resilience

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitError represents a provider rate limit response. RetryAfter is
// zero when the provider gave no hint.
type RateLimitError struct {
	Provider   string
	Message    string
	RetryAfter time.Duration
}

func (e RateLimitError) Error() string {
	msg := e.Provider + ": rate limited"
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.RetryAfter > 0 {
		msg += " (retry after " + e.RetryAfter.Round(time.Second).String() + ")"
	}
	return msg
}

// IsRateLimit returns true when the error is a RateLimitError.
func IsRateLimit(err error) bool {
	var rl RateLimitError
	return errors.As(err, &rl)
}

// OpenError is returned instead of calling a provider while its breaker is
// open. It is not a RateLimitError: no request reached the provider.
type OpenError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e OpenError) Error() string {
	msg := e.Provider + ": circuit open"
	if e.RetryAfter > 0 {
		msg += " (retry after " + e.RetryAfter.Round(time.Second).String() + ")"
	}
	return msg
}

// IsOpen returns true when the error is an OpenError.
func IsOpen(err error) bool {
	var oe OpenError
	return errors.As(err, &oe)
}

// RetryAfter returns the wait hint carried by a RateLimitError or OpenError
// in err.
func RetryAfter(err error) (time.Duration, bool) {
	var rl RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter, true
	}
	var oe OpenError
	if errors.As(err, &oe) && oe.RetryAfter > 0 {
		return oe.RetryAfter, true
	}
	return 0, false
}

// ParseRetryAfter reads a Retry-After header value, either delta-seconds or
// an HTTP date. Unparseable or past values yield zero.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// Transition is a breaker state change caused by a single call.
type Transition int

const (
	NoTransition Transition = iota
	Opened
	Closed
)

func (t Transition) String() string {
	switch t {
	case Opened:
		return "opened"
	case Closed:
		return "closed"
	default:
		return "none"
	}
}

// CircuitBreaker blocks requests after repeated rate limit failures.
// It never retries; it only refuses calls while open. State lives here so
// every wrapper sharing a breaker sees each transition exactly once.
type CircuitBreaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	open      bool
	openUntil time.Time
	cooldown  time.Duration
	now       func() time.Time
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

func (c *CircuitBreaker) Allow() bool {
	ok, _ := c.Admit()
	return ok
}

// Admit reports whether a call may proceed. The first call admitted after
// the cooldown closes the breaker and reports Closed; a failure on that call
// reopens it straight away.
func (c *CircuitBreaker) Admit() (bool, Transition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now().Before(c.openUntil) {
		return false, NoTransition
	}
	if c.open {
		c.open = false
		return true, Closed
	}
	return true, NoTransition
}

// Open reports whether the breaker is currently refusing calls.
func (c *CircuitBreaker) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open && c.now().Before(c.openUntil)
}

// Remaining reports how long the breaker stays open, zero when closed.
func (c *CircuitBreaker) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d := c.openUntil.Sub(c.now()); d > 0 {
		return d
	}
	return 0
}

// OnSuccess resets the failure count. A success that lands while the
// breaker is open closes it.
func (c *CircuitBreaker) OnSuccess() Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
	c.openUntil = time.Time{}
	if c.open {
		c.open = false
		return Closed
	}
	return NoTransition
}

// OnError counts rate limits. Once the threshold is reached the breaker
// opens for the cooldown or the provider's retry hint, whichever is longer.
// Only the call that trips the breaker reports Opened.
func (c *CircuitBreaker) OnError(err error) Transition {
	var rl RateLimitError
	if !errors.As(err, &rl) {
		return NoTransition
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures < c.threshold {
		return NoTransition
	}
	wait := c.cooldown
	if rl.RetryAfter > wait {
		wait = rl.RetryAfter
	}
	c.openUntil = c.now().Add(wait)
	if c.open {
		return NoTransition
	}
	c.open = true
	return Opened
}
