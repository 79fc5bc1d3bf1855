package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures a Breaker.
type Settings struct {
	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold int
	// Cooldown is how long the breaker stays open before letting one trial
	// call through.
	Cooldown time.Duration
	// OnStateChange is called outside the lock after every transition.
	OnStateChange func(name string, from, to State)
}

// DefaultSettings opens after 3 consecutive failures for 30 seconds.
func DefaultSettings() Settings {
	return Settings{
		Threshold: 3,
		Cooldown:  30 * time.Second,
	}
}

// Breaker stops calling an operation that keeps failing.
type Breaker struct {
	name     string
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trial    bool
}

// New creates a closed breaker. Zero settings take their defaults.
func New(name string, settings Settings) *Breaker {
	defaults := DefaultSettings()
	if settings.Threshold <= 0 {
		settings.Threshold = defaults.Threshold
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = defaults.Cooldown
	}
	return &Breaker{
		name:     name,
		settings: settings,
		now:      time.Now,
	}
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.cooledLocked() {
		return StateHalfOpen
	}
	return b.state
}

// Do runs fn unless the breaker is open. While half-open only one trial call
// runs at a time; others get ErrOpen.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}

	var err error
	defer func() {
		if p := recover(); p != nil {
			b.after(false)
			panic(p)
		}
		b.after(err == nil)
	}()
	err = fn(ctx)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	var changed func()
	switch b.state {
	case StateOpen:
		if !b.cooledLocked() {
			b.mu.Unlock()
			return ErrOpen
		}
		changed = b.setLocked(StateHalfOpen)
		b.trial = true
	case StateHalfOpen:
		if b.trial {
			b.mu.Unlock()
			return ErrOpen
		}
		b.trial = true
	}
	b.mu.Unlock()

	if changed != nil {
		changed()
	}
	return nil
}

func (b *Breaker) after(success bool) {
	b.mu.Lock()
	var changed func()
	switch b.state {
	case StateHalfOpen:
		b.trial = false
		if success {
			changed = b.setLocked(StateClosed)
		} else {
			changed = b.setLocked(StateOpen)
		}
	case StateClosed:
		if success {
			b.failures = 0
			break
		}
		b.failures++
		if b.failures >= b.settings.Threshold {
			changed = b.setLocked(StateOpen)
		}
	}
	b.mu.Unlock()

	if changed != nil {
		changed()
	}
}

func (b *Breaker) cooledLocked() bool {
	return !b.now().Before(b.openedAt.Add(b.settings.Cooldown))
}

// setLocked moves to state and returns the notification to run after
// unlocking, if any.
func (b *Breaker) setLocked(state State) func() {
	if b.state == state {
		return nil
	}
	prev := b.state
	b.state = state
	b.failures = 0
	if state == StateOpen {
		b.openedAt = b.now()
	}

	notify := b.settings.OnStateChange
	if notify == nil {
		return nil
	}
	name := b.name
	return func() { notify(name, prev, state) }
}
