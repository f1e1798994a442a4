package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/avelins/taskwire/internal/metrics"
	"github.com/avelins/taskwire/pkg/event"
)

// Producer publishes email jobs to the durable work queue. The connection is
// dialed lazily and re-dialed after a broker failure; a single producer owns
// it for the process lifetime.
type Producer struct {
	url  string
	name string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewProducer creates a producer for the named queue. No connection is
// opened until the first Enqueue.
func NewProducer(url, name string) *Producer {
	return &Producer{url: url, name: name}
}

// Enqueue declares the queue and publishes the job as persistent JSON.
// The caller decides what to do with a failure; the task-event paths log and
// count it without surfacing anything to the end user.
func (p *Producer) Enqueue(ctx context.Context, job event.EmailJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}

	ch, err := p.channel()
	if err != nil {
		metrics.QueuePublishFailures.Inc()
		return err
	}

	if _, err := declareQueue(ch, p.name); err != nil {
		p.reset()
		metrics.QueuePublishFailures.Inc()
		return fmt.Errorf("declaring queue %s: %w", p.name, err)
	}

	err = ch.PublishWithContext(ctx, "", p.name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		p.reset()
		metrics.QueuePublishFailures.Inc()
		return fmt.Errorf("publishing to %s: %w", p.name, err)
	}

	slog.Info("email job queued", "queue", p.name, "to", job.To, "subject", job.Subject)
	return nil
}

// channel returns the cached channel, dialing the broker if needed.
func (p *Producer) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dialing broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	p.conn, p.ch = conn, ch
	return ch, nil
}

// reset drops the cached connection so the next Enqueue re-dials.
func (p *Producer) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	return err
}
