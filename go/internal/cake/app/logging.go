package app

import (
	"github.com/mcdev12/birthdaycake/go/internal/cake/clientengine"
	"github.com/mcdev12/birthdaycake/go/internal/cake/serverengine"
	"github.com/rs/zerolog/log"
)

type serverEngineLog struct {
	serverengine.NopListener
	name string
}

func (l serverEngineLog) OnStart() { log.Info().Msgf("%s started", l.name) }
func (l serverEngineLog) OnStop()  { log.Info().Msgf("%s stopped", l.name) }

func (l serverEngineLog) OnError(err error) {
	log.Error().Err(err).Msgf("%s error", l.name)
}

func (l serverEngineLog) OnReset(state serverengine.State) {
	log.Info().
		Uint32("candles", state.CandleCount).
		Uint32("clients", state.ClientCount).
		Msgf("%s reset", l.name)
}

type clientEngineLog struct {
	clientengine.NopListener
	name string
}

func (l clientEngineLog) OnStart() { log.Info().Msgf("%s started", l.name) }
func (l clientEngineLog) OnStop()  { log.Info().Msgf("%s stopped", l.name) }

func (l clientEngineLog) OnError(err error) {
	log.Error().Err(err).Msgf("%s error", l.name)
}
