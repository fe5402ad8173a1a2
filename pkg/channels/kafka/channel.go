// Package kafka provides the Kafka transport for the event bus.
package kafka

import (
	"errors"
	"slices"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/flowsmith/pkg/events"
)

var ErrNoBrokers = errors.New("no kafka brokers configured")

// CreateChannel connects a publisher and a consumer-group subscriber to brokers.
// Messages are partitioned by their event key so events of one workflow or
// execution keep their order.
func CreateChannel(logger watermill.LoggerAdapter, brokers []string, serviceName string) (*kafka.Publisher, *kafka.Subscriber, error) {
	brokers = slices.DeleteFunc(slices.Clone(brokers), func(b string) bool { return b == "" })
	if len(brokers) == 0 {
		return nil, nil, ErrNoBrokers
	}

	marshaler := kafka.NewWithPartitioningMarshaler(partitionKey)

	subscriber, err := kafka.NewSubscriber(subscriberConfig(brokers, serviceName, marshaler), logger)
	if err != nil {
		return nil, nil, err
	}

	publisher, err := kafka.NewPublisher(publisherConfig(brokers, marshaler), logger)
	if err != nil {
		_ = subscriber.Close()

		return nil, nil, err
	}

	return publisher, subscriber, nil
}

func partitionKey(_ string, msg *message.Message) (string, error) {
	return msg.Metadata.Get(events.EventMetadataKey), nil
}

func subscriberConfig(brokers []string, serviceName string, unmarshaler kafka.Unmarshaler) kafka.SubscriberConfig {
	saramaConfig := kafka.DefaultSaramaSubscriberConfig()
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	return kafka.SubscriberConfig{
		Brokers:               brokers,
		Unmarshaler:           unmarshaler,
		OverwriteSaramaConfig: saramaConfig,
		ConsumerGroup:         "cg-" + serviceName,
		OTELEnabled:           true,
	}
}

func publisherConfig(brokers []string, marshaler kafka.Marshaler) kafka.PublisherConfig {
	saramaConfig := kafka.DefaultSaramaSyncPublisherConfig()
	saramaConfig.Producer.Return.Successes = true

	return kafka.PublisherConfig{
		Brokers:               brokers,
		Marshaler:             marshaler,
		OverwriteSaramaConfig: saramaConfig,
		OTELEnabled:           true,
	}
}
