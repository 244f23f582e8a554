package serverengine

// Listener receives engine events in the order the state changed.
// OnTick and OnReset get a copy of the aggregate; holding on to it is safe.
type Listener interface {
	OnStart()
	OnStop()
	OnError(err error)
	OnTick(state State)
	OnReset(state State)
}

// NopListener ignores every event. Embed it to implement only some methods.
type NopListener struct{}

func (NopListener) OnStart()      {}
func (NopListener) OnStop()       {}
func (NopListener) OnError(error) {}
func (NopListener) OnTick(State)  {}
func (NopListener) OnReset(State) {}

// Listeners fans every event out to each listener in order.
type Listeners []Listener

func (ls Listeners) OnStart() {
	for _, l := range ls {
		l.OnStart()
	}
}

func (ls Listeners) OnStop() {
	for _, l := range ls {
		l.OnStop()
	}
}

func (ls Listeners) OnError(err error) {
	for _, l := range ls {
		l.OnError(err)
	}
}

func (ls Listeners) OnTick(state State) {
	for _, l := range ls {
		l.OnTick(state)
	}
}

func (ls Listeners) OnReset(state State) {
	for _, l := range ls {
		l.OnReset(state)
	}
}

// lifecycle forwards scheduler events to the engine's listener.
type lifecycle struct {
	e *Engine
}

func (lc lifecycle) OnStart()          { lc.e.listener.OnStart() }
func (lc lifecycle) OnStop()           { lc.e.listener.OnStop() }
func (lc lifecycle) OnError(err error) { lc.e.listener.OnError(err) }
