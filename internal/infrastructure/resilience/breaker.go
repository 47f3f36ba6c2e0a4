package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
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

// Settings configures the circuit breaker behavior
type Settings struct {
	// MaxProbes is the number of trial calls let through while half-open
	MaxProbes uint32
	// Interval clears the closed-state counts periodically; zero keeps them forever
	Interval time.Duration
	// Cooldown is how long the breaker stays open before probing again
	Cooldown time.Duration
	// ShouldTrip decides, after a counted failure, whether to open the breaker
	ShouldTrip func(counts Counts) bool
	// Counts reports whether an error should count as a failure.
	// Errors it rejects are returned to the caller without touching the counts.
	Counts func(err error) bool
	// OnStateChange is called whenever the state changes
	OnStateChange func(name string, from State, to State)

	now func() time.Time
}

// Counts holds the statistics for the circuit breaker
type Counts struct {
	Calls                uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker guards an operation that can fail for environmental reasons,
// failing fast once it has failed too often in a row.
type Breaker struct {
	name     string
	settings Settings

	mu         sync.Mutex
	state      State
	counts     Counts
	expiry     time.Time
	generation uint64
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	if settings.MaxProbes == 0 {
		settings.MaxProbes = 1
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.ShouldTrip == nil {
		settings.ShouldTrip = func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 5
		}
	}
	if settings.Counts == nil {
		settings.Counts = func(err error) bool { return err != nil }
	}
	if settings.now == nil {
		settings.now = time.Now
	}

	b := &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
	}
	b.armInterval(settings.now())
	return b
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.currentState(b.settings.now())
}

// Counts returns a copy of the internal counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Execute runs fn if the breaker accepts the call.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T

	generation, err := b.admit()
	if err != nil {
		return zero, err
	}

	defer func() {
		if e := recover(); e != nil {
			b.record(generation, false)
			panic(e)
		}
	}()

	result, err := fn()
	if err != nil && !b.settings.Counts(err) {
		b.release(generation)
		return result, err
	}
	b.record(generation, err == nil)
	return result, err
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.currentState(b.settings.now())
	switch {
	case state == StateOpen:
		return b.generation, ErrCircuitOpen
	case state == StateHalfOpen && b.counts.Calls >= b.settings.MaxProbes:
		return b.generation, ErrTooManyRequests
	}

	b.counts.Calls++
	return b.generation, nil
}

// release gives back an admitted call whose outcome is not counted.
func (b *Breaker) release(before uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.generation == before && b.counts.Calls > 0 {
		b.counts.Calls--
	}
}

func (b *Breaker) record(before uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.settings.now()
	state := b.currentState(now)
	if b.generation != before {
		return
	}

	if success {
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.MaxProbes {
			b.setState(StateClosed, now)
		}
		return
	}

	b.counts.TotalFailures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0
	switch state {
	case StateClosed:
		if b.settings.ShouldTrip(b.counts) {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.setState(StateOpen, now)
	}
}

func (b *Breaker) currentState(now time.Time) State {
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && b.expiry.Before(now) {
			b.newGeneration()
			b.armInterval(now)
		}
	case StateOpen:
		if b.expiry.Before(now) {
			b.setState(StateHalfOpen, now)
		}
	}
	return b.state
}

func (b *Breaker) setState(state State, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.newGeneration()

	switch state {
	case StateClosed:
		b.armInterval(now)
	case StateOpen:
		b.expiry = now.Add(b.settings.Cooldown)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}

func (b *Breaker) armInterval(now time.Time) {
	if b.settings.Interval > 0 {
		b.expiry = now.Add(b.settings.Interval)
	} else {
		b.expiry = time.Time{}
	}
}

func (b *Breaker) newGeneration() {
	b.generation++
	b.counts = Counts{}
}
