// Package eventbus carries workflow lifecycle and execution events between
// the manager, the executor and any subscriber.
package eventbus

import (
	"context"

	"github.com/dukex/flowsmith/pkg/events"
)

// Event is any payload from pkg/events.
type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes events partitioned by key, usually a workflow id.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// PublisherFunc adapts a function to EventPublisher.
type PublisherFunc func(ctx context.Context, key string, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, key string, event Event) error {
	return f(ctx, key, event)
}

// EventSubscriber dispatches decoded events to one handler per event type.
// Handlers must be registered before Subscribe.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the concrete event type.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
