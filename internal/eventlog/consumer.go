package eventlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
)

// Consumer tails the durable log topic as part of a consumer group, starting
// from the earliest retained offset so a fresh group sees full history.
type Consumer struct {
	brokers []string
	topic   string
	group   string
}

// NewConsumer creates a consumer for the given topic and group.
func NewConsumer(brokers []string, topic, group string) *Consumer {
	return &Consumer{brokers: brokers, topic: topic, group: group}
}

// Run joins the consumer group and reports every received message until ctx
// is cancelled. Group rebalances re-enter the consume loop transparently.
func (c *Consumer) Run(ctx context.Context) error {
	cfg := sarama.NewConfig()
	cfg.ClientID = "taskwire-tail"
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	cg, err := sarama.NewConsumerGroup(c.brokers, c.group, cfg)
	if err != nil {
		return fmt.Errorf("joining consumer group %s: %w", c.group, err)
	}
	defer func() { _ = cg.Close() }()

	slog.Info("log consumer started", "topic", c.topic, "group", c.group)

	handler := reportHandler{}
	for {
		if err := cg.Consume(ctx, []string{c.topic}, handler); err != nil {
			if isShutdown(err) {
				return nil
			}
			return fmt.Errorf("consuming %s: %w", c.topic, err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// isShutdown reports whether the consume loop ended because of an orderly
// shutdown rather than a broker failure. Cancelling the context surfaces as
// context.Canceled from inside the group, which must not turn a clean stop
// into a nonzero exit.
func isShutdown(err error) bool {
	return errors.Is(err, sarama.ErrClosedConsumerGroup) || errors.Is(err, context.Canceled)
}

// reportHandler logs every record and marks it consumed afterwards.
// Processing is at-least-once: a crash between receipt and commit redelivers
// the message on restart, which is harmless because the handler only logs.
type reportHandler struct{}

func (reportHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (reportHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (reportHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		slog.Info("task event received",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value", string(msg.Value))
		sess.MarkMessage(msg, "")
	}
	return nil
}
