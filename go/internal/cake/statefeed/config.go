// Package statefeed records the server's aggregate state on a NATS JetStream
// stream and replays it.
//
// Ticks are published only when the broadcast state changes; resets are
// always published. Each message is a JSON Event on <prefix>.tick or
// <prefix>.reset.
package statefeed

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Config holds the JetStream connection and stream settings.
type Config struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	MaxAge        time.Duration // How long to keep state history
	MaxMsgs       int64         // Max number of messages to keep
	Replicas      int
	MaxPending    int // Outstanding async publishes before publishing stalls
	CloseTimeout  time.Duration
}

// DefaultConfig returns default state feed configuration
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		StreamName:    "CAKE_STATE",
		SubjectPrefix: "cake.state",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		MaxAge:        24 * time.Hour,
		MaxMsgs:       -1, // No limit
		Replicas:      1,
		MaxPending:    256,
		CloseTimeout:  5 * time.Second,
	}
}

// Subject returns the subject events of type t are published on.
func (c Config) Subject(t EventType) string {
	return fmt.Sprintf("%s.%s", c.SubjectPrefix, t)
}

// StreamSubjects is the wildcard the stream captures.
func (c Config) StreamSubjects() string {
	return c.SubjectPrefix + ".>"
}

func (c Config) streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        c.StreamName,
		Description: "Birthday cake aggregate state history",
		Subjects:    []string{c.StreamSubjects()},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      c.MaxAge,
		MaxMsgs:     c.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    c.Replicas,
	}
}

func connect(cfg Config, opts ...jetstream.JetStreamOpt) (*nats.Conn, jetstream.JetStream, error) {
	natsOpts := []nats.Option{
		nats.Name("cake-statefeed"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, natsOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc, opts...)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}
	return nc, js, nil
}
