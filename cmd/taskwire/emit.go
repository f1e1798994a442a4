package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/avelins/taskwire/internal/eventlog"
	"github.com/avelins/taskwire/pkg/event"
	"github.com/avelins/taskwire/pkg/publish"
)

// cmdEmit dispatches one synthetic task event through the publisher, exactly
// as the task service does after a committed mutation. Useful for smoke
// testing the hub relay and the log topic together.
func cmdEmit(args []string) {
	fs := flag.NewFlagSet("emit", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	typ := fs.String("type", "task_created", "event type: task_created, task_updated or task_deleted")
	taskID := fs.Int64("id", 1, "task id")
	title := fs.String("title", "example task", "task title (created/updated)")
	completed := fs.Bool("completed", false, "task completed flag (created/updated)")
	userID := fs.Int64("user", 1, "owning user id (deleted)")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	var rec event.Record
	switch event.Type(*typ) {
	case event.TypeTaskCreated:
		rec = event.NewTaskCreated(event.TaskSnapshot{ID: *taskID, Title: *title, Completed: *completed})
	case event.TypeTaskUpdated:
		rec = event.NewTaskUpdated(event.TaskSnapshot{ID: *taskID, Title: *title, Completed: *completed})
	case event.TypeTaskDeleted:
		rec = event.NewTaskDeleted(*taskID, *userID)
	default:
		fmt.Fprintf(os.Stderr, "unsupported event type %q\n", *typ)
		os.Exit(1)
	}

	producer := eventlog.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer func() { _ = producer.Close() }()

	pub := publish.New(cfg.Publisher.RelayURL, cfg.Publisher.Timeout, producer)
	pub.Publish(context.Background(), rec)

	slog.Info("event dispatched", "type", rec.Type, "id", rec.ID)
}
