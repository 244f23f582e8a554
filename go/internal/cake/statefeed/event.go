package statefeed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/birthdaycake/go/internal/cake/serverengine"
)

// EventType distinguishes tick snapshots from resets.
type EventType string

const (
	EventTick  EventType = "tick"
	EventReset EventType = "reset"
)

// Snapshot is the JSON form of serverengine.State.
type Snapshot struct {
	ClientCount         uint32  `json:"clientCount"`
	CandleCount         uint32  `json:"candleCount"`
	BlownOutCandleCount uint32  `json:"blownOutCandleCount"`
	TotalWindForce      float64 `json:"totalWindForce"`
	TargetWindForce     float64 `json:"targetWindForce"`
	MsAtTargetWindForce float64 `json:"msAtTargetWindForce"`
}

// Event is one message on the feed.
type Event struct {
	ID        string    `json:"eventId"`
	Type      EventType `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
	State     Snapshot  `json:"state"`
}

// SnapshotOf converts an engine state.
func SnapshotOf(state serverengine.State) Snapshot {
	return Snapshot{
		ClientCount:         state.ClientCount,
		CandleCount:         state.CandleCount,
		BlownOutCandleCount: state.BlownOutCandleCount,
		TotalWindForce:      state.TotalWindForce,
		TargetWindForce:     state.TargetWindForce,
		MsAtTargetWindForce: state.MsAtTargetWindForce,
	}
}

// NewEvent builds an event with a fresh id.
func NewEvent(t EventType, state serverengine.State, at time.Time) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: at.UTC(),
		State:     SnapshotOf(state),
	}
}

// EngineState converts the snapshot back to the engine type.
func (e Event) EngineState() serverengine.State {
	return serverengine.State{
		ClientCount:         e.State.ClientCount,
		CandleCount:         e.State.CandleCount,
		BlownOutCandleCount: e.State.BlownOutCandleCount,
		TotalWindForce:      e.State.TotalWindForce,
		TargetWindForce:     e.State.TargetWindForce,
		MsAtTargetWindForce: e.State.MsAtTargetWindForce,
	}
}

// DecodeEvent parses a feed message body.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("unmarshal state event: %w", err)
	}
	switch e.Type {
	case EventTick, EventReset:
	default:
		return Event{}, fmt.Errorf("unknown state event type %q", e.Type)
	}
	return e, nil
}
