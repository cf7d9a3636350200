// Package events carries the publish/subscribe plumbing the engine uses to
// hand domain events between modules without direct imports. Event types
// themselves live with the domains that emit them.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event the engine emits.
type Event interface {
	// EventName identifies the event type; subscriptions key on it.
	EventName() string
	// OccurredAt is the emission timestamp.
	OccurredAt() time.Time
}

// BaseEvent supplies the timestamp half of the Event contract; concrete
// events embed it and add their payload.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a BaseEvent with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events it subscribed to.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a plain function act as a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus routes published events to the handlers subscribed under their name.
type Bus interface {
	// Publish fans the event out to its handlers without waiting for them.
	Publish(ctx context.Context, event Event)

	// PublishSync delivers the event and blocks until every handler ran.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler under an event name, matched against
	// Event.EventName at delivery.
	Subscribe(eventName string, handler Handler)
}
