package main

import (
	"context"

	"github.com/avelins/taskwire/internal/config"
	"github.com/avelins/taskwire/internal/eventlog"
	"github.com/avelins/taskwire/internal/mail"
	"github.com/avelins/taskwire/internal/queue"
)

// runWorker starts the email work-queue worker. Startup blocks in the
// connect-retry loop until the broker is reachable.
func runWorker(ctx context.Context, cfg *config.Config) error {
	w := queue.NewWorker(cfg.Queue, mail.Mailer{})
	return w.Run(ctx)
}

// runTail starts the durable-log consumer.
func runTail(ctx context.Context, cfg *config.Config) error {
	c := eventlog.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	return c.Run(ctx)
}
