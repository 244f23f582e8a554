package statefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/birthdaycake/go/internal/cake/protocol"
	"github.com/mcdev12/birthdaycake/go/internal/cake/serverengine"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Publisher writes server engine events to the state stream. It is a
// serverengine.Listener; publishing is asynchronous so ticks never wait on
// NATS.
type Publisher struct {
	serverengine.NopListener

	nc     *nats.Conn
	js     jetstream.JetStream
	config Config
	clock  clockwork.Clock

	mu      sync.Mutex
	last    protocol.ServerMessage
	hasLast bool
}

// NewPublisher connects to NATS and makes sure the stream exists.
func NewPublisher(ctx context.Context, cfg Config) (*Publisher, error) {
	opts := []jetstream.JetStreamOpt{
		jetstream.WithPublishAsyncErrHandler(func(_ jetstream.JetStream, msg *nats.Msg, err error) {
			log.Error().
				Err(err).
				Str("subject", msg.Subject).
				Msg("failed to publish state event")
		}),
	}
	if cfg.MaxPending > 0 {
		opts = append(opts, jetstream.WithPublishAsyncMaxPending(cfg.MaxPending))
	}

	nc, js, err := connect(cfg, opts...)
	if err != nil {
		return nil, err
	}

	p := newPublisher(js, cfg, clockwork.NewRealClock())
	p.nc = nc

	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return p, nil
}

func newPublisher(js jetstream.JetStream, cfg Config, clock clockwork.Clock) *Publisher {
	return &Publisher{
		js:     js,
		config: cfg,
		clock:  clock,
	}
}

func (p *Publisher) ensureStream(ctx context.Context) error {
	if _, err := p.js.CreateOrUpdateStream(ctx, p.config.streamConfig()); err != nil {
		return fmt.Errorf("create or update stream %s: %w", p.config.StreamName, err)
	}
	log.Info().
		Str("stream", p.config.StreamName).
		Str("subjects", p.config.StreamSubjects()).
		Msg("state feed stream ready")
	return nil
}

// OnTick publishes the state if what clients see has changed.
func (p *Publisher) OnTick(state serverengine.State) {
	msg := state.Message()

	p.mu.Lock()
	if p.hasLast && p.last == msg {
		p.mu.Unlock()
		return
	}
	p.last, p.hasLast = msg, true
	p.mu.Unlock()

	p.publish(EventTick, state)
}

// OnReset always publishes.
func (p *Publisher) OnReset(state serverengine.State) {
	p.mu.Lock()
	p.last, p.hasLast = state.Message(), true
	p.mu.Unlock()

	p.publish(EventReset, state)
}

func (p *Publisher) publish(t EventType, state serverengine.State) {
	event := NewEvent(t, state, p.clock.Now())
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal state event")
		return
	}

	subject := p.config.Subject(t)
	_, err = p.js.PublishMsgAsync(&nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(t)},
			"Event-ID":   []string{event.ID},
		},
	},
		jetstream.WithMsgID(event.ID),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		log.Error().
			Err(err).
			Str("subject", subject).
			Msg("failed to queue state event")
		return
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", event.ID).
		Uint32("blown_out", state.BlownOutCandleCount).
		Msg("queued state event")
}

// Close waits for outstanding publishes, then closes the connection.
func (p *Publisher) Close() error {
	select {
	case <-p.js.PublishAsyncComplete():
	case <-time.After(p.config.CloseTimeout):
		log.Warn().
			Int("pending", p.js.PublishAsyncPending()).
			Msg("state feed closed with unacknowledged publishes")
	}
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}
