// Package app wires the engines to their transports and collaborators: a
// networked server, a headless networked client and a single-process local
// mode.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/mcdev12/birthdaycake/go/internal/cake/admin"
	"github.com/mcdev12/birthdaycake/go/internal/cake/gateway"
	"github.com/mcdev12/birthdaycake/go/internal/cake/protocol"
	"github.com/mcdev12/birthdaycake/go/internal/cake/serverengine"
	"github.com/mcdev12/birthdaycake/go/internal/ticker"
	"github.com/rs/zerolog/log"
)

// FeedPublisher receives every server engine event, e.g. a statefeed.Publisher.
type FeedPublisher interface {
	serverengine.Listener
	Close() error
}

// ServerOptions configures a ServerApp.
type ServerOptions struct {
	Gateway gateway.Config
	Engine  serverengine.Options
	// Feed is optional.
	Feed  FeedPublisher
	Clock ticker.Clock
}

// ServerApp runs the authoritative engine behind the websocket gateway.
type ServerApp struct {
	engine *serverengine.Engine
	server *gateway.Server
	feed   FeedPublisher

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

// NewServerApp builds the server; nothing runs until Run or Serve.
func NewServerApp(opts ServerOptions) (*ServerApp, error) {
	a := &ServerApp{feed: opts.Feed}

	listeners := serverengine.Listeners{
		serverEngineLog{name: "engine"},
		broadcaster{a: a},
	}
	if opts.Feed != nil {
		listeners = append(listeners, opts.Feed)
	}

	engineOpts := []serverengine.Option{serverengine.WithListener(listeners)}
	if opts.Clock != nil {
		engineOpts = append(engineOpts, serverengine.WithClock(opts.Clock))
	}
	engine, err := serverengine.New(opts.Engine, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("create server engine: %w", err)
	}
	a.engine = engine

	a.server = gateway.NewServer(opts.Gateway, a)
	path, handler := admin.NewAdminServiceHandler(admin.NewService(a))
	a.server.Handle(path+"*", handler)
	for path, handler := range admin.NewReflectionHandlers() {
		a.server.Handle(path+"*", handler)
	}

	log.Info().Int("pid", os.Getpid()).Msg("server app created")
	return a, nil
}

// Handler returns the HTTP handler serving websocket, admin and health routes.
func (a *ServerApp) Handler() http.Handler {
	return a.server.Handler()
}

// Run listens on the configured address; see Serve.
func (a *ServerApp) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.server.Addr(), err)
	}
	return a.Serve(ctx, ln)
}

// Serve starts the engine and serves ln until ctx ends or Stop is called.
// The transport is closed before the engine stops.
func (a *ServerApp) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	if a.stopped {
		cancel()
	}
	a.mu.Unlock()
	defer cancel()

	a.engine.Start()
	err := a.server.Serve(ctx, ln)
	a.engine.Stop()

	if a.feed != nil {
		if closeErr := a.feed.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close state feed")
		}
	}
	return err
}

// Stop ends Serve.
func (a *ServerApp) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	if a.cancel != nil {
		a.cancel()
	}
}

// Reset relights every candle.
func (a *ServerApp) Reset() {
	a.engine.Reset()
}

// State returns the engine's aggregate.
func (a *ServerApp) State() serverengine.State {
	return a.engine.State()
}

// ClientCount returns the number of connected websocket clients.
func (a *ServerApp) ClientCount() int {
	return a.server.Manager().ClientCount()
}

func (a *ServerApp) OnConnect(id string) {
	a.engine.AddClient(id)
}

func (a *ServerApp) OnDisconnect(id string) {
	a.engine.RemoveClient(id)
}

func (a *ServerApp) OnMessage(id string, msg protocol.ClientMessage) {
	a.engine.UpdateClientState(id, msg)
}

// broadcaster sends every tick to all clients.
type broadcaster struct {
	serverengine.NopListener
	a *ServerApp
}

func (b broadcaster) OnTick(state serverengine.State) {
	b.a.server.Manager().Broadcast(state.Message())
}
