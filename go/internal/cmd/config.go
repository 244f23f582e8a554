package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mcdev12/birthdaycake/go/internal/cake/gateway"
	"github.com/mcdev12/birthdaycake/go/internal/cake/statefeed"
	"github.com/mcdev12/birthdaycake/go/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func setupLogging(c config.Config) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(c.Level())
}

func gatewayConfig(c config.Config) gateway.Config {
	gc := gateway.DefaultConfig()
	gc.Host = c.Server.Host
	gc.Port = c.Server.Port
	gc.ConnectionConfig.MessagesPerSecond = c.Gateway.MessagesPerSecond
	return gc
}

func stateFeedConfig(c config.Config) (statefeed.Config, bool) {
	fc := statefeed.DefaultConfig()
	if c.StateFeed.NATSURL == "" {
		return fc, false
	}
	fc.URL = c.StateFeed.NATSURL
	fc.StreamName = c.StateFeed.Stream
	fc.SubjectPrefix = c.StateFeed.Subject
	return fc, true
}

// adminURL is where the admin commands reach the server by default.
func adminURL(c config.Config) string {
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Server.Port))
}

// interruptContext ends on SIGINT or SIGTERM.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
