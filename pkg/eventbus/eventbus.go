// Package eventbus publishes and consumes execution lifecycle events over a
// watermill pub/sub channel.
package eventbus

import (
	"context"

	"github.com/costray/costray/pkg/events"
)

// Event is anything with a declared event type.
type Event interface {
	GetType() events.EventType
}

// EventHandler processes one decoded event.
type EventHandler func(ctx context.Context, event any) error

// EventBus decouples the orchestrator from whoever watches run progress.
type EventBus interface {
	Publish(ctx context.Context, key string, event Event) error
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
	GenerateID() string
	Close() error
}
