package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/minerva-erp/osflow/pkg/channels/gochannel"
	"github.com/minerva-erp/osflow/pkg/channels/kafka"
	"github.com/minerva-erp/osflow/pkg/eventbus"
)

// NewEventBus builds the event bus named by provider: "gochannel" (in-process)
// or "kafka" (brokers is a comma separated list).
func NewEventBus(provider, brokers, serviceName string, logger *slog.Logger) (eventbus.EventBus, error) {
	adapter := watermill.NewSlogLogger(logger)

	switch provider {
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(adapter)
		if err != nil {
			return nil, fmt.Errorf("failed to create GoChannel pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(adapter, serviceName, kafka.ParseBrokers(brokers))
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
