// Package config loads process configuration from an optional .env file, an
// optional YAML file and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/birthdaycake/go/internal/cake/clientengine"
	"github.com/mcdev12/birthdaycake/go/internal/cake/serverengine"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the YAML file to load when no path is given.
const ConfigFileEnv = "CAKE_CONFIG"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Engine    EngineConfig    `yaml:"engine"`
	Client    ClientConfig    `yaml:"client"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	StateFeed StateFeedConfig `yaml:"state_feed"`
	LogLevel  string          `yaml:"log_level"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type EngineConfig struct {
	TicksPerSecond float64 `yaml:"ticks_per_second"`
	CandleCount    uint32  `yaml:"candle_count"`
	// CandleLifetime is in seconds.
	CandleLifetime             float64 `yaml:"candle_lifetime"`
	TargetWindForcePerClient   float64 `yaml:"target_wind_force_per_client"`
	FirstCandleWindForceFactor float64 `yaml:"first_candle_wind_force_factor"`
}

type ClientConfig struct {
	URL            string  `yaml:"url"`
	TicksPerSecond float64 `yaml:"ticks_per_second"`
	WindPhi        float64 `yaml:"wind_phi"`
	// WindForce is what the headless client blows at its peak.
	WindForce float64 `yaml:"wind_force"`
}

type GatewayConfig struct {
	MessagesPerSecond float64 `yaml:"messages_per_second"`
}

type StateFeedConfig struct {
	// NATSURL enables the feed when set.
	NATSURL string `yaml:"nats_url"`
	Stream  string `yaml:"stream"`
	Subject string `yaml:"subject"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 9117,
		},
		Engine: EngineConfig{
			TicksPerSecond:             16,
			CandleCount:                26,
			CandleLifetime:             0.05,
			TargetWindForcePerClient:   0.001,
			FirstCandleWindForceFactor: 2,
		},
		Client: ClientConfig{
			URL:            "ws://localhost:9117/ws",
			TicksPerSecond: 16,
			WindForce:      0.002,
		},
		Gateway: GatewayConfig{
			MessagesPerSecond: 64,
		},
		StateFeed: StateFeedConfig{
			Stream:  "CAKE_STATE",
			Subject: "cake.state",
		},
		LogLevel: "info",
	}
}

// Load builds the configuration. path may be empty, in which case
// $CAKE_CONFIG is used if set.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Msg("no .env file found")
		} else {
			log.Warn().Err(err).Msg("could not load .env file")
		}
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	count := func(key string, dst *uint32) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = uint32(n)
		}
	}

	str("SERVER_HOST", &c.Server.Host)
	integer("SERVER_PORT", &c.Server.Port)

	num("ENGINE_TICKS_PER_SECOND", &c.Engine.TicksPerSecond)
	count("ENGINE_CANDLE_COUNT", &c.Engine.CandleCount)
	num("ENGINE_CANDLE_LIFETIME", &c.Engine.CandleLifetime)
	num("ENGINE_TARGET_WIND_FORCE_PER_CLIENT", &c.Engine.TargetWindForcePerClient)
	num("ENGINE_FIRST_CANDLE_WIND_FORCE_FACTOR", &c.Engine.FirstCandleWindForceFactor)

	str("CLIENT_URL", &c.Client.URL)
	num("CLIENT_TICKS_PER_SECOND", &c.Client.TicksPerSecond)
	num("CLIENT_WIND_PHI", &c.Client.WindPhi)
	num("CLIENT_WIND_FORCE", &c.Client.WindForce)

	num("GATEWAY_MESSAGES_PER_SECOND", &c.Gateway.MessagesPerSecond)

	str("NATS_URL", &c.StateFeed.NATSURL)
	str("STATE_FEED_STREAM", &c.StateFeed.Stream)
	str("STATE_FEED_SUBJECT", &c.StateFeed.Subject)

	str("LOG_LEVEL", &c.LogLevel)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %w", errors.Join(errs...))
	}
	return nil
}

// Validate checks values the engines cannot validate themselves.
func (c Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > math.MaxUint16 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if !(c.Engine.TicksPerSecond > 0) {
		return fmt.Errorf("engine ticks per second must be positive, got %v", c.Engine.TicksPerSecond)
	}
	if !(c.Client.TicksPerSecond > 0) {
		return fmt.Errorf("client ticks per second must be positive, got %v", c.Client.TicksPerSecond)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if _, err := c.ServerEngineOptions(); err != nil {
		return err
	}
	if _, err := c.ClientEngineOptions(); err != nil {
		return err
	}
	return nil
}

// Level returns the configured zerolog level, info if unparsable.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// ServerEngineOptions derives validated server engine options.
func (c Config) ServerEngineOptions() (serverengine.Options, error) {
	o := serverengine.Options{
		TickInterval:               tickInterval(c.Engine.TicksPerSecond),
		CandleCount:                c.Engine.CandleCount,
		TargetWindForcePerClient:   c.Engine.TargetWindForcePerClient,
		FirstCandleWindForceFactor: c.Engine.FirstCandleWindForceFactor,
		CandleLifetime:             time.Duration(math.Round(1000*c.Engine.CandleLifetime)) * time.Millisecond,
	}
	if err := o.Validate(); err != nil {
		return serverengine.Options{}, err
	}
	return o, nil
}

// ClientEngineOptions derives validated client engine options.
func (c Config) ClientEngineOptions() (clientengine.Options, error) {
	o := clientengine.Options{
		TickInterval: tickInterval(c.Client.TicksPerSecond),
		WindPhi:      c.Client.WindPhi,
	}
	if err := o.Validate(); err != nil {
		return clientengine.Options{}, err
	}
	return o, nil
}

// tickInterval rounds to whole milliseconds.
func tickInterval(ticksPerSecond float64) time.Duration {
	return time.Duration(math.Round(1000/ticksPerSecond)) * time.Millisecond
}
