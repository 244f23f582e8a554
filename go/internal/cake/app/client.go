package app

import (
	"context"
	"fmt"

	"github.com/mcdev12/birthdaycake/go/clients/cake_client"
	"github.com/mcdev12/birthdaycake/go/internal/cake/clientengine"
	"github.com/mcdev12/birthdaycake/go/internal/cake/protocol"
	"github.com/mcdev12/birthdaycake/go/internal/ticker"
	"github.com/rs/zerolog/log"
)

// ClientOptions configures a ClientApp.
type ClientOptions struct {
	URL      string
	Engine   clientengine.Options
	Wind     WindSource
	Renderer Renderer
	Clock    ticker.Clock
}

// ClientApp mirrors a remote server into a local client engine, renders it and
// reports the local wind force back every tick.
type ClientApp struct {
	client   *cake_client.Client
	engine   *clientengine.Engine
	wind     WindSource
	renderer Renderer
}

// DialClientApp connects to the server and starts the client engine.
func DialClientApp(ctx context.Context, opts ClientOptions) (*ClientApp, error) {
	if opts.Wind == nil || opts.Renderer == nil {
		return nil, fmt.Errorf("client app: wind source and renderer are required")
	}

	a := &ClientApp{
		wind:     opts.Wind,
		renderer: opts.Renderer,
	}

	engineOpts := []clientengine.Option{
		clientengine.WithListener(clientengine.Listeners{
			clientEngineLog{name: "engine"},
			clientTicker{a: a},
		}),
	}
	if opts.Clock != nil {
		engineOpts = append(engineOpts, clientengine.WithClock(opts.Clock))
	}
	engine, err := clientengine.New(opts.Engine, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("create client engine: %w", err)
	}
	a.engine = engine

	client, err := cake_client.Dial(ctx, cake_client.Options{
		URL:     opts.URL,
		Handler: clientEvents{a: a},
	})
	if err != nil {
		return nil, err
	}
	a.client = client

	a.engine.Start()
	return a, nil
}

// Done is closed when the connection to the server ends.
func (a *ClientApp) Done() <-chan struct{} {
	return a.client.Done()
}

// State returns the client engine's presentation state.
func (a *ClientApp) State() clientengine.State {
	return a.engine.State()
}

// Stop stops the engine and closes the connection.
func (a *ClientApp) Stop() error {
	a.engine.Stop()
	return a.client.Close()
}

func (a *ClientApp) tick(state clientengine.State) {
	a.renderer.Render(state)

	if err := a.client.Send(protocol.ClientMessage{WindForce: state.WindForce}); err != nil {
		log.Warn().Err(err).Msg("failed to send wind force")
	}

	a.engine.UpdateClientState(protocol.ClientMessage{WindForce: a.wind.WindForce()})
}

type clientTicker struct {
	clientengine.NopListener
	a *ClientApp
}

func (t clientTicker) OnTick(state clientengine.State) { t.a.tick(state) }

// clientEvents adapts connection events to the engine.
type clientEvents struct {
	a *ClientApp
}

func (e clientEvents) OnOpen()  { log.Info().Msg("client connected") }
func (e clientEvents) OnClose() { log.Info().Msg("client disconnected") }

func (e clientEvents) OnError(err error) {
	log.Error().Err(err).Msg("client error")
}

func (e clientEvents) OnMessage(msg protocol.ServerMessage) {
	e.a.engine.UpdateServerState(msg)
}
