// Package queue is the work queue client: a producer publishing email jobs
// to a durable queue and a worker consuming them with acknowledgment after
// the side effect succeeds.
package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// declareQueue declares the durable queue. Declaration is idempotent, so
// producer and worker both declare on every connection without coordination.
func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
}
