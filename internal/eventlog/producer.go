// Package eventlog is the durable log client: a keyed producer appending to
// the partitioned task-events topic and a consumer group tailing it from the
// earliest retained offset.
package eventlog

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer appends keyed messages to the durable log topic.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a producer for the given topic.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:  kafka.TCP(brokers...),
			Topic: topic,
			// Hash balancing pins all messages sharing a key to one
			// partition, which is what gives per-key ordering.
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			Async:                  false,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish appends one message. All messages sharing a key are read back in
// publish order by any one consumer group.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
