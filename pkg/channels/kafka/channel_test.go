package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/flowsmith/pkg/events"
	"github.com/stretchr/testify/assert"
)

func TestCreateChannel_NoBrokers(t *testing.T) {
	for _, brokers := range [][]string{nil, {""}} {
		pub, sub, err := CreateChannel(watermill.NopLogger{}, brokers, "flowsmith")

		assert.ErrorIs(t, err, ErrNoBrokers)
		assert.Nil(t, pub)
		assert.Nil(t, sub)
	}
}

func TestPartitionKey(t *testing.T) {
	msg := message.NewMessage("1", []byte("{}"))
	msg.Metadata.Set(events.EventMetadataKey, "wf-1")

	key, err := partitionKey(events.Topic, msg)
	assert.NoError(t, err)
	assert.Equal(t, "wf-1", key)
}

func TestConfigs(t *testing.T) {
	brokers := []string{"localhost:9092"}

	sub := subscriberConfig(brokers, "flowsmith", kafka.DefaultMarshaler{})
	assert.Equal(t, "cg-flowsmith", sub.ConsumerGroup)
	assert.Equal(t, brokers, sub.Brokers)
	assert.Equal(t, sarama.OffsetOldest, sub.OverwriteSaramaConfig.Consumer.Offsets.Initial)

	pub := publisherConfig(brokers, kafka.DefaultMarshaler{})
	assert.True(t, pub.OverwriteSaramaConfig.Producer.Return.Successes)
	assert.True(t, pub.OTELEnabled)
}
