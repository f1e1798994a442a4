package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpillora/backoff"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/avelins/taskwire/internal/config"
	"github.com/avelins/taskwire/internal/metrics"
	"github.com/avelins/taskwire/pkg/event"
)

// Sender executes the side effect for one delivered job.
type Sender interface {
	Send(ctx context.Context, job event.EmailJob) error
}

// jobPublisher is the slice of *amqp.Channel the worker needs to route a
// failed job to the dead queue. Narrowed to an interface so tests can fake it.
type jobPublisher interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Worker consumes email jobs from the durable queue. Startup blocks until a
// broker connection succeeds, retrying with capped exponential backoff; a
// connection lost mid-run re-enters the same loop. Messages are acknowledged
// only after the side effect succeeds.
type Worker struct {
	url         string
	name        string
	prefetch    int
	maxAttempts int
	boff        *backoff.Backoff
	sender      Sender

	// connectFn is w.connect; swapped out in tests to observe the loop.
	connectFn func() (*amqp.Connection, *amqp.Channel, <-chan amqp.Delivery, error)
}

// NewWorker creates a worker for the configured queue.
func NewWorker(cfg config.QueueConfig, sender Sender) *Worker {
	w := &Worker{
		url:         cfg.URL,
		name:        cfg.Name,
		prefetch:    cfg.Prefetch,
		maxAttempts: cfg.MaxConnectAttempts,
		boff: &backoff.Backoff{
			Min:    cfg.ReconnectMin,
			Max:    cfg.ReconnectMax,
			Factor: 2,
			Jitter: true,
		},
		sender: sender,
	}
	w.connectFn = w.connect
	return w
}

// Run blocks until ctx is cancelled or the connect budget is exhausted.
// Exhausting the budget is a fatal condition and returns an error; clean
// shutdown returns nil.
func (w *Worker) Run(ctx context.Context) error {
	attempts := 0
	for {
		conn, ch, deliveries, err := w.connectFn()
		if err != nil {
			attempts++
			if w.maxAttempts > 0 && attempts >= w.maxAttempts {
				return fmt.Errorf("queue unreachable after %d attempts: %w", attempts, err)
			}
			delay := w.boff.Duration()
			slog.Warn("queue connect failed, retrying",
				"queue", w.name,
				"attempt", attempts,
				"retry_in", delay,
				"error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}

		attempts = 0
		w.boff.Reset()
		slog.Info("worker connected, waiting for jobs", "queue", w.name)

		err = w.consume(ctx, ch, deliveries)
		_ = conn.Close()

		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("queue connection lost, reconnecting", "queue", w.name, "error", err)
	}
}

func (w *Worker) connect() (*amqp.Connection, *amqp.Channel, <-chan amqp.Delivery, error) {
	conn, err := amqp.Dial(w.url)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("dialing broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, nil, fmt.Errorf("opening channel: %w", err)
	}

	if _, err := declareQueue(ch, w.name); err != nil {
		_ = conn.Close()
		return nil, nil, nil, fmt.Errorf("declaring queue %s: %w", w.name, err)
	}

	if err := ch.Qos(w.prefetch, 0, false); err != nil {
		_ = conn.Close()
		return nil, nil, nil, fmt.Errorf("setting prefetch: %w", err)
	}

	deliveries, err := ch.Consume(w.name, "", false, false, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return nil, nil, nil, fmt.Errorf("starting consume: %w", err)
	}

	return conn, ch, deliveries, nil
}

func (w *Worker) consume(ctx context.Context, ch jobPublisher, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.handle(ctx, ch, d)
		}
	}
}

// handle runs one delivery through the side effect. Malformed payloads are
// dropped. A failed send is requeued once; a redelivered job that fails again
// is routed to the dead queue so the broker does not bounce it forever.
func (w *Worker) handle(ctx context.Context, ch jobPublisher, d amqp.Delivery) {
	var job event.EmailJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		slog.Error("dropping malformed job", "queue", w.name, "error", err)
		_ = d.Reject(false)
		return
	}

	if err := w.sender.Send(ctx, job); err != nil {
		if !d.Redelivered {
			slog.Warn("send failed, requeueing job", "to", job.To, "error", err)
			metrics.EmailsProcessed.WithLabelValues("retried").Inc()
			_ = d.Nack(false, true)
			return
		}
		slog.Error("send failed after redelivery, routing to dead queue", "to", job.To, "error", err)
		w.deadLetter(ctx, ch, d)
		metrics.EmailsProcessed.WithLabelValues("dead").Inc()
		_ = d.Ack(false)
		return
	}

	metrics.EmailsProcessed.WithLabelValues("ok").Inc()
	_ = d.Ack(false)
}

func (w *Worker) deadLetter(ctx context.Context, ch jobPublisher, d amqp.Delivery) {
	name := w.name + ".dead"
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		slog.Error("declaring dead queue failed", "queue", name, "error", err)
		return
	}
	err := ch.PublishWithContext(ctx, "", name, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Body:         d.Body,
	})
	if err != nil {
		slog.Error("dead queue publish failed", "queue", name, "error", err)
	}
}
