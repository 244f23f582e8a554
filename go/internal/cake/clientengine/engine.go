// Package clientengine mirrors the server's aggregate counts into a per-candle
// presentation state for rendering.
//
// The server only sends counts, never candle identities. Candles are laid out
// by the layout package whenever the count changes, and blow-outs are applied
// from the front of the candle slice, so the shuffled slice order decides
// which candle visibly goes out next.
package clientengine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mcdev12/birthdaycake/go/internal/cake/layout"
	"github.com/mcdev12/birthdaycake/go/internal/cake/protocol"
	"github.com/mcdev12/birthdaycake/go/internal/ticker"
)

// ErrInvalidOptions is returned by New when Options fail validation.
var ErrInvalidOptions = errors.New("invalid client engine options")

// Options configures the client engine.
type Options struct {
	TickInterval time.Duration
	// WindPhi rotates the server's scalar wind force into a direction on the
	// cake. It is purely cosmetic.
	WindPhi float64
}

// Validate reports the first problem with o.
func (o Options) Validate() error {
	if o.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive, got %v", ErrInvalidOptions, o.TickInterval)
	}
	if math.IsNaN(o.WindPhi) || math.IsInf(o.WindPhi, 0) {
		return fmt.Errorf("%w: wind phi must be finite", ErrInvalidOptions)
	}
	return nil
}

// Vector is a direction on the cake top.
type Vector struct {
	X float64
	Z float64
}

// Candle is one candle slot.
type Candle struct {
	X     float64
	Z     float64
	IsLit bool
}

// State is the renderer-facing view.
type State struct {
	ClientCount uint32
	// WindForce is this client's own measurement, not the aggregate.
	WindForce      float32
	TotalWindForce Vector
	Candles        []Candle
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := s
	c.Candles = make([]Candle, len(s.Candles))
	copy(c.Candles, s.Candles)
	return c
}

// LitCount returns the number of lit candles.
func (s State) LitCount() int {
	n := 0
	for _, c := range s.Candles {
		if c.IsLit {
			n++
		}
	}
	return n
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

// Engine owns the presentation state.
type Engine struct {
	options  Options
	listener Listener
	clock    ticker.Clock

	scheduler *ticker.Scheduler

	mu    sync.Mutex
	state State
}

// New creates a stopped engine with no candles.
func New(options Options, opts ...Option) (*Engine, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		options:  options,
		listener: NopListener{},
		state: State{
			Candles: []Candle{},
		},
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

// State returns a deep copy of the presentation state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// UpdateServerState applies the latest server aggregate.
func (e *Engine) UpdateServerState(msg protocol.ServerMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &e.state
	s.ClientCount = msg.ClientCount

	force := float64(msg.TotalWindForce)
	s.TotalWindForce = Vector{
		X: force * math.Cos(e.options.WindPhi),
		Z: force * math.Sin(e.options.WindPhi),
	}

	if len(s.Candles) != int(msg.CandleCount) {
		s.Candles = buildCandles(int(msg.CandleCount))
	}

	target := int(msg.BlownOutCandleCount)
	if target > len(s.Candles) {
		target = len(s.Candles)
	}
	applyBlownOut(s.Candles, target)
}

// UpdateClientState stores the local wind reading for the next outbound
// message. Candles are not affected.
func (e *Engine) UpdateClientState(msg protocol.ClientMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.WindForce = msg.WindForce
}

func (e *Engine) onTick(time.Duration) error {
	e.listener.OnTick(e.State())
	return nil
}

func buildCandles(n int) []Candle {
	points := layout.Arrange(n)
	candles := make([]Candle, len(points))
	for i, p := range points {
		candles[i] = Candle{X: p.X, Z: p.Z, IsLit: true}
	}
	return candles
}

// applyBlownOut relights or extinguishes candles from the front of the slice
// until exactly target candles are unlit.
func applyBlownOut(candles []Candle, target int) {
	unlit := 0
	for _, c := range candles {
		if !c.IsLit {
			unlit++
		}
	}

	for unlit > target {
		unlit--
		candles[unlit].IsLit = true
	}
	for unlit < target {
		candles[unlit].IsLit = false
		unlit++
	}
}
