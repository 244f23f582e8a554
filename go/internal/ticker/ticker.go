// Package ticker runs a self-rescheduling tick loop shared by the server and
// client simulation engines.
//
// Each tick is delayed by a fixed interval after the previous tick completes,
// so slow ticks stretch the real inter-tick spacing. The drift is not
// corrected; callers receive the measured elapsed time instead.
package ticker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrTickFailed wraps any error returned (or panic raised) by a tick function.
var ErrTickFailed = errors.New("tick failed")

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// Lifecycle receives the scheduler's start, stop and error events.
type Lifecycle interface {
	OnStart()
	OnStop()
	OnError(err error)
}

// TickFunc is called once per tick with the wall-clock time elapsed since the
// previous tick (or since Start for the first one).
type TickFunc func(delta time.Duration) error

type nopLifecycle struct{}

func (nopLifecycle) OnStart()      {}
func (nopLifecycle) OnStop()       {}
func (nopLifecycle) OnError(error) {}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the real clock.
func WithClock(clock Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithLifecycle sets the receiver of start/stop/error events.
func WithLifecycle(lc Lifecycle) Option {
	return func(s *Scheduler) {
		if lc != nil {
			s.lifecycle = lc
		}
	}
}

// Scheduler is a start/stop tick loop with delay-after-completion semantics.
type Scheduler struct {
	interval  time.Duration
	tick      TickFunc
	clock     Clock
	lifecycle Lifecycle

	mu      sync.Mutex
	running bool
	// generation identifies the current loop; a loop whose generation is
	// stale exits on its next wake without ticking.
	generation uint64
}

// New creates a scheduler that calls tick every interval once started.
func New(interval time.Duration, tick TickFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		interval:  interval,
		tick:      tick,
		clock:     clockwork.NewRealClock(),
		lifecycle: nopLifecycle{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the configured delay between ticks.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Running reports whether the loop is scheduled to keep ticking.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start schedules the first tick one interval from now. It is a no-op while
// the scheduler is already running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.generation++
	gen := s.generation
	last := s.clock.Now()
	s.mu.Unlock()

	go s.run(gen, last)
}

// Stop flips the running flag. The sleeping loop observes it when it next
// wakes, runs that final tick and emits OnStop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Scheduler) run(gen uint64, last time.Time) {
	if !s.sleep(gen) {
		return
	}
	s.lifecycle.OnStart()

	for {
		now := s.clock.Now()
		if err := s.safeTick(now.Sub(last)); err != nil {
			s.halt(gen)
			s.lifecycle.OnError(err)
			return
		}
		last = now

		current, running := s.status(gen)
		if !current {
			return
		}
		if !running {
			s.lifecycle.OnStop()
			return
		}
		if !s.sleep(gen) {
			return
		}
	}
}

// sleep waits one interval and reports whether gen is still the live loop.
func (s *Scheduler) sleep(gen uint64) bool {
	timer := s.clock.NewTimer(s.interval)
	<-timer.Chan()
	current, _ := s.status(gen)
	return current
}

func (s *Scheduler) status(gen uint64) (current, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation, s.running
}

func (s *Scheduler) halt(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation {
		s.running = false
	}
}

func (s *Scheduler) safeTick(delta time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrTickFailed, r)
		}
	}()
	if err := s.tick(delta); err != nil {
		return fmt.Errorf("%w: %w", ErrTickFailed, err)
	}
	return nil
}
