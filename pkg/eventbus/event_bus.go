// Package eventbus fans out run lifecycle events. Events are observability
// and integration fan-out only; run state is owned by persistence, so a lost
// event never corrupts a run.
package eventbus

import (
	"context"

	"github.com/adopshq/adflow/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes an event keyed by campaign identifier. The key
// keeps one campaign's events ordered on partitioned transports.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber registers handlers and starts consumption. Handle must be
// called for every event type of interest before Subscribe.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
