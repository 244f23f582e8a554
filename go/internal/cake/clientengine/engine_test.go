package clientengine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/birthdaycake/go/internal/cake/layout"
	"github.com/mcdev12/birthdaycake/go/internal/cake/protocol"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(Options{TickInterval: 10 * time.Millisecond}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func serverMsg(candles, blownOut uint32) protocol.ServerMessage {
	return protocol.ServerMessage{ClientCount: 1, CandleCount: candles, BlownOutCandleCount: blownOut}
}

func unlitCount(s State) int {
	return len(s.Candles) - s.LitCount()
}

func TestScenarioBlownOutAppliedFromFront(t *testing.T) {
	e := newTestEngine(t)
	e.UpdateServerState(serverMsg(5, 3))

	s := e.State()
	want := []bool{false, false, false, true, true}
	for i, c := range s.Candles {
		if c.IsLit != want[i] {
			t.Fatalf("candle %d lit = %v, want %v", i, c.IsLit, want[i])
		}
	}
}

func TestUnlitCountTracksServerWithStableIdentity(t *testing.T) {
	e := newTestEngine(t)
	e.UpdateServerState(serverMsg(10, 0))
	positions := e.State().Candles

	prev := 0
	for _, blownOut := range []int{1, 4, 4, 7, 10, 10, 2, 6} {
		before := e.State()
		e.UpdateServerState(serverMsg(10, uint32(blownOut)))
		after := e.State()

		if got := unlitCount(after); got != blownOut {
			t.Fatalf("unlit = %d, want %d", got, blownOut)
		}
		boundary := max(prev, blownOut)
		for i := boundary; i < len(after.Candles); i++ {
			if after.Candles[i] != before.Candles[i] {
				t.Fatalf("candle %d beyond the adjustment boundary changed: %+v -> %+v", i, before.Candles[i], after.Candles[i])
			}
		}
		for i, c := range after.Candles {
			if c.X != positions[i].X || c.Z != positions[i].Z {
				t.Fatalf("candle %d moved without a count change", i)
			}
		}
		prev = blownOut
	}
}

func TestScenarioCountChangeRebuildsLayout(t *testing.T) {
	e := newTestEngine(t)
	e.UpdateServerState(serverMsg(5, 2))
	e.UpdateServerState(serverMsg(8, 3))

	s := e.State()
	points := layout.Arrange(8)
	if len(s.Candles) != len(points) {
		t.Fatalf("len(Candles) = %d, want 8", len(s.Candles))
	}
	for i, c := range s.Candles {
		if c.X != points[i].X || c.Z != points[i].Z {
			t.Fatalf("candle %d at (%v,%v), want layout position %v", i, c.X, c.Z, points[i])
		}
		if c.IsLit != (i >= 3) {
			t.Fatalf("candle %d lit = %v after rebuild", i, c.IsLit)
		}
	}
}

func TestRebuildToSameCountElsewhereGivesSameLayout(t *testing.T) {
	a, b := newTestEngine(t), newTestEngine(t)
	a.UpdateServerState(serverMsg(26, 0))
	b.UpdateServerState(serverMsg(3, 0))
	b.UpdateServerState(serverMsg(26, 0))

	sa, sb := a.State(), b.State()
	for i := range sa.Candles {
		if sa.Candles[i] != sb.Candles[i] {
			t.Fatalf("candle %d differs between clients", i)
		}
	}
}

func TestZeroCandles(t *testing.T) {
	e := newTestEngine(t)
	e.UpdateServerState(serverMsg(4, 1))
	e.UpdateServerState(serverMsg(0, 0))

	if s := e.State(); len(s.Candles) != 0 {
		t.Fatalf("len(Candles) = %d, want 0", len(s.Candles))
	}
}

func TestDecreaseWithoutResetRelightsFront(t *testing.T) {
	e := newTestEngine(t)
	e.UpdateServerState(serverMsg(5, 3))
	e.UpdateServerState(serverMsg(5, 1))

	s := e.State()
	want := []bool{false, true, true, true, true}
	for i, c := range s.Candles {
		if c.IsLit != want[i] {
			t.Fatalf("candle %d lit = %v, want %v", i, c.IsLit, want[i])
		}
	}
}

func TestBlownOutBeyondCandleCountIsCapped(t *testing.T) {
	e := newTestEngine(t)
	e.UpdateServerState(serverMsg(3, 9))

	if s := e.State(); s.LitCount() != 0 || len(s.Candles) != 3 {
		t.Fatalf("state = %+v, want 3 unlit candles", s)
	}
}

func TestWindVectorIsRotatedByPhi(t *testing.T) {
	e, err := New(Options{TickInterval: time.Millisecond, WindPhi: math.Pi / 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.UpdateServerState(protocol.ServerMessage{TotalWindForce: 0.5})

	v := e.State().TotalWindForce
	if math.Abs(v.X) > 1e-12 || math.Abs(v.Z-0.5) > 1e-12 {
		t.Fatalf("TotalWindForce = %+v, want (0, 0.5)", v)
	}
}

func TestClientStateDoesNotTouchCandles(t *testing.T) {
	e := newTestEngine(t)
	e.UpdateServerState(serverMsg(6, 2))
	before := e.State()

	e.UpdateClientState(protocol.ClientMessage{WindForce: 0.7})
	after := e.State()

	if after.WindForce != 0.7 {
		t.Fatalf("WindForce = %v, want 0.7", after.WindForce)
	}
	for i := range before.Candles {
		if before.Candles[i] != after.Candles[i] {
			t.Fatalf("candle %d changed on a client update", i)
		}
	}
}

func TestValidateRejectsBadOptions(t *testing.T) {
	for _, o := range []Options{
		{},
		{TickInterval: -time.Second},
		{TickInterval: time.Second, WindPhi: math.NaN()},
	} {
		if _, err := New(o); !errors.Is(err, ErrInvalidOptions) {
			t.Fatalf("New(%+v) error = %v, want ErrInvalidOptions", o, err)
		}
	}
}

type tickListener struct {
	NopListener
	ticks chan State
}

func (l *tickListener) OnTick(s State) { l.ticks <- s }

func TestTickEmitsIndependentCopy(t *testing.T) {
	fc := clockwork.NewFakeClock()
	l := &tickListener{ticks: make(chan State, 4)}
	e := newTestEngine(t, WithClock(fc), WithListener(l))
	e.UpdateServerState(serverMsg(4, 0))
	e.Start()
	defer e.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("engine never scheduled a tick: %v", err)
	}
	fc.Advance(10 * time.Millisecond)

	var got State
	select {
	case got = <-l.ticks:
	case <-time.After(time.Second):
		t.Fatalf("no tick")
	}
	if len(got.Candles) != 4 {
		t.Fatalf("tick carried %d candles, want 4", len(got.Candles))
	}

	got.Candles[0].IsLit = false
	if e.State().LitCount() != 4 {
		t.Fatalf("mutating a tick snapshot leaked into the engine")
	}
}
