package eventbus

import (
	"context"

	"github.com/google/uuid"

	"github.com/costray/costray/pkg/events"
)

// NoopEventBus discards all events. Used when no broker is configured: run
// progress is still fully observable through the checkpoint store.
type NoopEventBus struct{}

func NewNoopEventBus() *NoopEventBus {
	return &NoopEventBus{}
}

func (eb *NoopEventBus) Publish(_ context.Context, _ string, _ Event) error { return nil }

func (eb *NoopEventBus) Handle(_ events.EventType, _ EventHandler) error { return nil }

func (eb *NoopEventBus) Subscribe(_ context.Context) error { return nil }

func (eb *NoopEventBus) GenerateID() string { return uuid.New().String() }

func (eb *NoopEventBus) Close() error { return nil }
