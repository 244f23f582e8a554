// Package serverengine is the authoritative candle simulation.
//
// The engine sums the wind force reported by every connected client once per
// tick. While the sum stays at or above the target (the per-client target
// times the number of clients, and more for the first candle), time
// accumulates; every full candle lifetime of continuous force blows out one
// more candle. Any dip below the target throws the accumulated time away.
package serverengine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mcdev12/birthdaycake/go/internal/cake/protocol"
	"github.com/mcdev12/birthdaycake/go/internal/ticker"
	"github.com/rs/zerolog/log"
)

// ErrInvalidOptions is returned by New when Options fail validation.
var ErrInvalidOptions = errors.New("invalid server engine options")

// Options configures the server engine. They are fixed for the engine's life.
type Options struct {
	TickInterval             time.Duration
	CandleCount              uint32
	TargetWindForcePerClient float64
	// FirstCandleWindForceFactor multiplies the target while no candle has
	// been blown out yet. Zero is treated as 1.
	FirstCandleWindForceFactor float64
	CandleLifetime             time.Duration
}

// Validate reports the first problem with o.
func (o Options) Validate() error {
	switch {
	case o.TickInterval <= 0:
		return fmt.Errorf("%w: tick interval must be positive, got %v", ErrInvalidOptions, o.TickInterval)
	case o.CandleLifetime <= 0:
		return fmt.Errorf("%w: candle lifetime must be positive, got %v", ErrInvalidOptions, o.CandleLifetime)
	case o.TargetWindForcePerClient < 0:
		return fmt.Errorf("%w: target wind force per client must not be negative", ErrInvalidOptions)
	case o.FirstCandleWindForceFactor < 0:
		return fmt.Errorf("%w: first candle wind force factor must not be negative", ErrInvalidOptions)
	}
	return nil
}

// State is the aggregate the server broadcasts every tick.
type State struct {
	ClientCount         uint32
	CandleCount         uint32
	BlownOutCandleCount uint32
	TotalWindForce      float64
	TargetWindForce     float64
	MsAtTargetWindForce float64
}

// Message converts the state to its wire form.
func (s State) Message() protocol.ServerMessage {
	return protocol.ServerMessage{
		ClientCount:         s.ClientCount,
		CandleCount:         s.CandleCount,
		BlownOutCandleCount: s.BlownOutCandleCount,
		TotalWindForce:      float32(s.TotalWindForce),
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithListener sets the receiver of engine events.
func WithListener(l Listener) Option {
	return func(e *Engine) {
		if l != nil {
			e.listener = l
		}
	}
}

// WithClock drives the tick loop from clock instead of the real clock.
func WithClock(clock ticker.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// Engine owns the aggregate state and the per-client contributions.
type Engine struct {
	options  Options
	listener Listener
	clock    ticker.Clock

	scheduler *ticker.Scheduler

	// emitMu serializes a state change with the event that reports it, so
	// listeners see ticks and resets in the order they were applied. mu is
	// never held while a listener runs.
	emitMu sync.Mutex

	mu            sync.Mutex
	state         State
	contributions map[string]protocol.ClientMessage
}

// New creates a stopped engine.
func New(options Options, opts ...Option) (*Engine, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	if options.FirstCandleWindForceFactor == 0 {
		options.FirstCandleWindForceFactor = 1
	}

	e := &Engine{
		options:  options,
		listener: NopListener{},
		state: State{
			CandleCount: options.CandleCount,
		},
		contributions: make(map[string]protocol.ClientMessage),
	}
	for _, opt := range opts {
		opt(e)
	}

	schedOpts := []ticker.Option{ticker.WithLifecycle(lifecycle{e})}
	if e.clock != nil {
		schedOpts = append(schedOpts, ticker.WithClock(e.clock))
	}
	e.scheduler = ticker.New(options.TickInterval, e.onTick, schedOpts...)

	return e, nil
}

// Options returns the options the engine was built with.
func (e *Engine) Options() Options {
	return e.options
}

// Start begins ticking. It is a no-op while already running.
func (e *Engine) Start() {
	e.scheduler.Start()
}

// Stop ends the tick loop after its next wake.
func (e *Engine) Stop() {
	e.scheduler.Stop()
}

// Running reports whether the tick loop is scheduled.
func (e *Engine) Running() bool {
	return e.scheduler.Running()
}

// State returns a copy of the current aggregate.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// AddClient registers a client with zero wind force.
func (e *Engine) AddClient(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.contributions[id] = protocol.ClientMessage{}
	e.recountClients()
}

// RemoveClient drops a client and its contribution. Unknown ids are ignored.
func (e *Engine) RemoveClient(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.contributions, id)
	e.recountClients()
}

// UpdateClientState replaces the contribution of a registered client.
// Unlike a plain last-write-wins map write, an id that was never passed to
// AddClient is dropped rather than inserted, since it would add force
// without raising the target.
func (e *Engine) UpdateClientState(id string, msg protocol.ClientMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.contributions[id]; !ok {
		log.Debug().Str("client_id", id).Msg("ignoring wind force from unregistered client")
		return
	}
	e.contributions[id] = msg
}

// Reset relights every candle and clears the accumulated time.
func (e *Engine) Reset() {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	e.state.BlownOutCandleCount = 0
	e.state.MsAtTargetWindForce = 0
	snapshot := e.state
	e.mu.Unlock()

	e.listener.OnReset(snapshot)
}

func (e *Engine) recountClients() {
	e.state.ClientCount = uint32(len(e.contributions))
	e.state.TargetWindForce = float64(e.state.ClientCount) * e.options.TargetWindForcePerClient
}

func (e *Engine) onTick(delta time.Duration) error {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	snapshot := e.step(float64(delta) / float64(time.Millisecond))
	e.listener.OnTick(snapshot)
	return nil
}

// step advances the simulation by deltaMs and returns the resulting state.
func (e *Engine) step(deltaMs float64) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &e.state

	s.TotalWindForce = 0
	for _, c := range e.contributions {
		s.TotalWindForce += float64(c.WindForce)
	}

	threshold := s.TargetWindForce
	if s.BlownOutCandleCount == 0 {
		threshold *= e.options.FirstCandleWindForceFactor
	}

	if s.TotalWindForce <= 0 || s.TotalWindForce < threshold {
		s.MsAtTargetWindForce = 0
		return *s
	}

	lifetimeMs := float64(e.options.CandleLifetime) / float64(time.Millisecond)
	s.MsAtTargetWindForce += deltaMs
	for s.MsAtTargetWindForce >= lifetimeMs {
		s.MsAtTargetWindForce -= lifetimeMs
		if s.BlownOutCandleCount < s.CandleCount {
			s.BlownOutCandleCount++
		}
	}
	return *s
}
