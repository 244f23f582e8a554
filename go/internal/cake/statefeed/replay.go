package statefeed

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Replayer reads the state stream from the beginning.
type Replayer struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config Config
}

// NewReplayer connects to NATS.
func NewReplayer(cfg Config) (*Replayer, error) {
	nc, js, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	return &Replayer{nc: nc, js: js, config: cfg}, nil
}

// Replay delivers every stored event, oldest first, and then follows new
// ones until ctx ends. Messages that do not decode are logged and skipped.
func (r *Replayer) Replay(ctx context.Context, handle func(Event)) error {
	consumer, err := r.js.OrderedConsumer(ctx, r.config.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{r.config.StreamSubjects()},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create ordered consumer on %s: %w", r.config.StreamName, err)
	}

	log.Info().
		Str("stream", r.config.StreamName).
		Msg("replaying state feed")

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		event, err := DecodeEvent(msg.Data())
		if err != nil {
			log.Warn().
				Err(err).
				Str("subject", msg.Subject()).
				Msg("skipping undecodable state event")
			return
		}
		handle(event)
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	<-ctx.Done()
	return nil
}

// Close closes the NATS connection.
func (r *Replayer) Close() error {
	r.nc.Close()
	return nil
}
