package conversation

import (
	"time"

	"github.com/sanchez314c/agent-chat/types"
	"go.uber.org/zap"
)

// EventType identifies what an Event carries.
type EventType string

const (
	// EventMessage is emitted for every message appended to the history.
	EventMessage EventType = "message"
	// EventState is emitted on every run-state transition.
	EventState EventType = "state"
	// EventError is emitted when a turn fails.
	EventError EventType = "error"
	// EventReset is emitted when the history is replaced wholesale.
	EventReset EventType = "reset"
)

// Event is one entry of the orchestrator's feed.
type Event struct {
	Type     EventType      `json:"type"`
	Time     time.Time      `json:"time"`
	Turn     int            `json:"turn"`
	Message  *types.Message `json:"message,omitempty"`
	State    types.RunState `json:"state,omitempty"`
	Previous types.RunState `json:"previous,omitempty"`
	Error    string         `json:"error,omitempty"`
}

const defaultEventBuffer = 64

// Subscribe returns a feed of events and a function that ends the
// subscription. Slow subscribers lose events rather than stall the turn
// loop. The feed of a closed orchestrator is already closed.
func (o *Orchestrator) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	ch := make(chan Event, buffer)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	o.mu.Unlock()

	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if c, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(c)
		}
	}
}

// publish fans ev out to subscribers. Callers hold o.mu.
func (o *Orchestrator) publish(ev Event) {
	ev.Time = time.Now()
	for id, ch := range o.subs {
		select {
		case ch <- ev:
		default:
			o.logger.Debug("dropping event for slow subscriber",
				zap.Int("subscriber", id),
				zap.String("type", string(ev.Type)))
		}
	}
}

// closeSubscribers ends every subscription. Callers hold o.mu.
func (o *Orchestrator) closeSubscribers() {
	for id, ch := range o.subs {
		delete(o.subs, id)
		close(ch)
	}
}
