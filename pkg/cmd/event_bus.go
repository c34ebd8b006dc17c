package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/costray/costray/pkg/channels/gochannel"
	"github.com/costray/costray/pkg/channels/kafka"
	"github.com/costray/costray/pkg/eventbus"
)

// NewEventBus builds the lifecycle event bus for a binary. kafkaBrokers is a
// comma separated broker list, only consulted for the kafka provider.
func NewEventBus(provider, kafkaBrokers string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(
			watermill.NewSlogLogger(logger), strings.Split(kafkaBrokers, ","), "costray")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create in-process pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "", "none":
		return eventbus.NewNoopEventBus()
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
