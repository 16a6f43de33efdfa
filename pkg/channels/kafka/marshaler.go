package kafka

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/minerva-erp/osflow/pkg/events"
)

func partitionKey(_ string, msg *message.Message) (string, error) {
	return msg.Metadata.Get(events.EventMetadataKey), nil
}
