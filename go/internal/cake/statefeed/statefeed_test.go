package statefeed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/birthdaycake/go/internal/cake/serverengine"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// fakeJetStream records async publishes. Methods it does not override panic
// through the nil embedded interface.
type fakeJetStream struct {
	jetstream.JetStream

	mu        sync.Mutex
	published []*nats.Msg
	streams   []jetstream.StreamConfig
}

func (f *fakeJetStream) PublishMsgAsync(msg *nats.Msg, _ ...jetstream.PublishOpt) (jetstream.PubAckFuture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msg)
	return nil, nil
}

func (f *fakeJetStream) CreateOrUpdateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams = append(f.streams, cfg)
	return nil, nil
}

func (f *fakeJetStream) PublishAsyncComplete() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (f *fakeJetStream) messages() []*nats.Msg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*nats.Msg(nil), f.published...)
}

func TestSubjects(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.Subject(EventTick); got != "cake.state.tick" {
		t.Fatalf("tick subject = %q", got)
	}
	if got := cfg.Subject(EventReset); got != "cake.state.reset" {
		t.Fatalf("reset subject = %q", got)
	}
	if got := cfg.StreamSubjects(); got != "cake.state.>" {
		t.Fatalf("stream subjects = %q", got)
	}

	sc := cfg.streamConfig()
	if sc.Name != "CAKE_STATE" || len(sc.Subjects) != 1 || sc.Subjects[0] != "cake.state.>" {
		t.Fatalf("stream config = %+v", sc)
	}
}

func TestEventRoundTrip(t *testing.T) {
	state := serverengine.State{
		ClientCount:         2,
		CandleCount:         26,
		BlownOutCandleCount: 5,
		TotalWindForce:      0.004,
		TargetWindForce:     0.002,
		MsAtTargetWindForce: 31,
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	js := &fakeJetStream{}
	pub := newPublisher(js, DefaultConfig(), clockwork.NewFakeClockAt(at))
	pub.OnTick(state)

	msgs := js.messages()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	got, err := DecodeEvent(msgs[0].Data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if got.Type != EventTick || !got.Timestamp.Equal(at) {
		t.Fatalf("event = %+v", got)
	}
	if got.EngineState() != state {
		t.Fatalf("EngineState() = %+v, want %+v", got.EngineState(), state)
	}
	if msgs[0].Header.Get("Event-ID") != got.ID {
		t.Fatalf("Event-ID header %q does not match body id %q", msgs[0].Header.Get("Event-ID"), got.ID)
	}
}

func TestTicksPublishOnlyOnChange(t *testing.T) {
	js := &fakeJetStream{}
	pub := newPublisher(js, DefaultConfig(), clockwork.NewFakeClock())

	s := serverengine.State{ClientCount: 1, CandleCount: 4}
	pub.OnTick(s)
	s.MsAtTargetWindForce = 12 // not part of what clients see
	pub.OnTick(s)
	s.BlownOutCandleCount = 1
	pub.OnTick(s)
	pub.OnTick(s)

	s.BlownOutCandleCount = 0
	pub.OnReset(s)
	pub.OnTick(s)

	msgs := js.messages()
	wantSubjects := []string{"cake.state.tick", "cake.state.tick", "cake.state.reset"}
	if len(msgs) != len(wantSubjects) {
		t.Fatalf("published %d messages, want %d", len(msgs), len(wantSubjects))
	}
	for i, want := range wantSubjects {
		if msgs[i].Subject != want {
			t.Fatalf("message %d subject = %q, want %q", i, msgs[i].Subject, want)
		}
	}
}

func TestEnsureStream(t *testing.T) {
	js := &fakeJetStream{}
	pub := newPublisher(js, DefaultConfig(), clockwork.NewFakeClock())
	if err := pub.ensureStream(context.Background()); err != nil {
		t.Fatalf("ensureStream: %v", err)
	}
	if len(js.streams) != 1 || js.streams[0].Name != "CAKE_STATE" {
		t.Fatalf("streams = %+v", js.streams)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	for _, data := range []string{
		``,
		`{`,
		`{"eventType":"explode"}`,
	} {
		if _, err := DecodeEvent([]byte(data)); err == nil {
			t.Fatalf("DecodeEvent(%q) succeeded", data)
		}
	}
}
