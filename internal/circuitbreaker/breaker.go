package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker is rejecting calls.
var ErrOpen = errors.New("circuit breaker is open")

// State is the breaker state.
type State int

const (
	StateClosed   State = iota // normal operation
	StateOpen                  // failing, rejecting calls
	StateHalfOpen              // probing whether the upstream recovered
)

// Breaker protects the public indexer hosts from retry storms when they are
// down. A long-running watch loop wraps its upstream calls with Do.
type Breaker struct {
	mu            sync.Mutex
	state         State
	failures      int
	probeOKs      int
	maxFailures   int
	probeQuota    int // successes needed in half-open before closing
	cooloff       time.Duration
	lastFailureAt time.Time
	onStateChange func(from, to State)
	nowFn         func() time.Time
}

// Config configures a Breaker. Zero values take the defaults in New.
type Config struct {
	MaxFailures   int           // consecutive failures before opening (default 5)
	ProbeQuota    int           // half-open successes before closing (default 2)
	Cooloff       time.Duration // open duration before probing (default 30s)
	OnStateChange func(from, to State)
}

func New(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ProbeQuota <= 0 {
		cfg.ProbeQuota = 2
	}
	if cfg.Cooloff <= 0 {
		cfg.Cooloff = 30 * time.Second
	}
	return &Breaker{
		state:         StateClosed,
		maxFailures:   cfg.MaxFailures,
		probeQuota:    cfg.ProbeQuota,
		cooloff:       cfg.Cooloff,
		onStateChange: cfg.OnStateChange,
		nowFn:         time.Now,
	}
}

// Do runs fn if the breaker allows it and records the outcome.
// Context cancellation is not counted as an upstream failure.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn(ctx)
	if err == nil {
		b.RecordSuccess()
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	b.RecordFailure()
	return err
}

// Allow reports whether a call may proceed right now.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen {
		if b.nowFn().Sub(b.lastFailureAt) > b.cooloff {
			b.setState(StateHalfOpen)
			return nil
		}
		return ErrOpen
	}
	return nil
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	if b.state == StateHalfOpen {
		b.probeOKs++
		if b.probeOKs >= b.probeQuota {
			b.setState(StateClosed)
		}
	}
}

// RecordFailure records a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.probeOKs = 0
	b.lastFailureAt = b.nowFn()
	if b.state == StateHalfOpen {
		b.setState(StateOpen)
	} else if b.state == StateClosed && b.failures >= b.maxFailures {
		b.setState(StateOpen)
	}
}

// CurrentState returns the state, transitioning open to half-open when the
// cooloff has elapsed.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.nowFn().Sub(b.lastFailureAt) > b.cooloff {
		b.setState(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.probeOKs = 0
	if to == StateClosed {
		b.failures = 0
	}
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
