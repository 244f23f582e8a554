package app

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/birthdaycake/go/internal/cake/clientengine"
	"github.com/rs/zerolog"
)

// WindSource measures how hard the local participant is blowing.
type WindSource interface {
	WindForce() float32
}

// ConstantWind always reports the same force.
type ConstantWind float32

func (w ConstantWind) WindForce() float32 { return float32(w) }

// OscillatingWind rises from zero to Peak and back once per Period.
type OscillatingWind struct {
	Peak   float32
	Period time.Duration

	clock clockwork.Clock
	start time.Time
}

// NewOscillatingWind starts the cycle at zero now.
func NewOscillatingWind(peak float32, period time.Duration, clock clockwork.Clock) *OscillatingWind {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &OscillatingWind{
		Peak:   peak,
		Period: period,
		clock:  clock,
		start:  clock.Now(),
	}
}

func (w *OscillatingWind) WindForce() float32 {
	if w.Period <= 0 {
		return w.Peak
	}
	phase := 2 * math.Pi * float64(w.clock.Since(w.start)) / float64(w.Period)
	return w.Peak * float32((1-math.Cos(phase))/2)
}

// Renderer presents the client state. It is called on every client tick.
type Renderer interface {
	Render(state clientengine.State)
}

// LogRenderer logs the candles whenever the lit or total count changes.
type LogRenderer struct {
	logger zerolog.Logger

	mu    sync.Mutex
	total int
	lit   int
	seen  bool
}

func NewLogRenderer(logger zerolog.Logger) *LogRenderer {
	return &LogRenderer{logger: logger}
}

func (r *LogRenderer) Render(state clientengine.State) {
	total, lit := len(state.Candles), state.LitCount()

	r.mu.Lock()
	changed := !r.seen || total != r.total || lit != r.lit
	r.seen, r.total, r.lit = true, total, lit
	r.mu.Unlock()

	if !changed {
		return
	}

	r.logger.Info().
		Int("candles", total).
		Int("lit", lit).
		Uint32("clients", state.ClientCount).
		Float64("total_wind_force", math.Hypot(state.TotalWindForce.X, state.TotalWindForce.Z)).
		Msg("cake updated")
}
