package app

import (
	"fmt"

	"github.com/mcdev12/birthdaycake/go/internal/cake/clientengine"
	"github.com/mcdev12/birthdaycake/go/internal/cake/protocol"
	"github.com/mcdev12/birthdaycake/go/internal/cake/serverengine"
	"github.com/mcdev12/birthdaycake/go/internal/ticker"
)

// LocalClientID is the id the local participant is registered under.
const LocalClientID = "local"

// LocalOptions configures a LocalApp.
type LocalOptions struct {
	Server   serverengine.Options
	Client   clientengine.Options
	Wind     WindSource
	Renderer Renderer
	Clock    ticker.Clock
}

// LocalApp runs both engines in one process with a single participant and no
// network in between.
type LocalApp struct {
	server   *serverengine.Engine
	client   *clientengine.Engine
	wind     WindSource
	renderer Renderer
}

// NewLocalApp builds both engines; Start runs them.
func NewLocalApp(opts LocalOptions) (*LocalApp, error) {
	if opts.Wind == nil || opts.Renderer == nil {
		return nil, fmt.Errorf("local app: wind source and renderer are required")
	}

	a := &LocalApp{
		wind:     opts.Wind,
		renderer: opts.Renderer,
	}

	serverOpts := []serverengine.Option{
		serverengine.WithListener(serverengine.Listeners{
			serverEngineLog{name: "server engine"},
			localServerTicker{a: a},
		}),
	}
	clientOpts := []clientengine.Option{
		clientengine.WithListener(clientengine.Listeners{
			clientEngineLog{name: "client engine"},
			localClientTicker{a: a},
		}),
	}
	if opts.Clock != nil {
		serverOpts = append(serverOpts, serverengine.WithClock(opts.Clock))
		clientOpts = append(clientOpts, clientengine.WithClock(opts.Clock))
	}

	server, err := serverengine.New(opts.Server, serverOpts...)
	if err != nil {
		return nil, fmt.Errorf("create server engine: %w", err)
	}
	client, err := clientengine.New(opts.Client, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create client engine: %w", err)
	}
	a.server, a.client = server, client
	return a, nil
}

// Start runs both engines and registers the local participant.
func (a *LocalApp) Start() {
	a.server.Start()
	a.client.Start()
	a.server.AddClient(LocalClientID)
}

// Stop unregisters the participant and stops both engines.
func (a *LocalApp) Stop() {
	a.server.RemoveClient(LocalClientID)
	a.server.Stop()
	a.client.Stop()
}

// Reset relights every candle.
func (a *LocalApp) Reset() {
	a.server.Reset()
}

// State returns the client engine's presentation state.
func (a *LocalApp) State() clientengine.State {
	return a.client.State()
}

type localServerTicker struct {
	serverengine.NopListener
	a *LocalApp
}

func (t localServerTicker) OnTick(state serverengine.State) {
	t.a.client.UpdateServerState(state.Message())
}

type localClientTicker struct {
	clientengine.NopListener
	a *LocalApp
}

func (t localClientTicker) OnTick(state clientengine.State) {
	a := t.a
	a.server.UpdateClientState(LocalClientID, protocol.ClientMessage{WindForce: state.WindForce})
	a.renderer.Render(state)
	a.client.UpdateClientState(protocol.ClientMessage{WindForce: a.wind.WindForce()})
}
