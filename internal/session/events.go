package session

import "poemd/pkg/types"

// Event names published by the controller.
const (
	EventStatus           = "status"
	EventDownloadProgress = "download_progress"
	EventLoaded           = "loaded"
	EventOutput           = "output"
	EventThroughput       = "throughput"
	EventRunning          = "running"
	EventDone             = "done"
	EventDropped          = "dropped"
)

// Event is one state change of the controller. State is the snapshot taken
// right after the change.
type Event struct {
	Name         string
	GenerationID string
	State        State
	Fields       map[string]any
}

// Message converts the event to its wire representation.
func (e Event) Message() types.EventMessage {
	return types.EventMessage{
		Event:        e.Name,
		GenerationID: e.GenerationID,
		State:        e.State.Response(),
		Fields:       e.Fields,
	}
}

// EventPublisher receives events from the controller. Publish is called on the
// goroutine that caused the change (including the runtime's token callback),
// so implementations must be non-blocking and must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MultiPublisher fans an event out to several publishers in order.
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(e Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(e)
		}
	}
}
