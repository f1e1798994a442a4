// Package metrics exposes delivery counters for the fan-out paths. Event
// delivery failures are deliberately swallowed (the mutation must never roll
// back), so counters are the only machine-readable signal of silent loss.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RelayFailures counts failed relay posts to the broadcast hub ingress.
	RelayFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskwire",
		Name:      "relay_failures_total",
		Help:      "Failed relay posts to the broadcast hub ingress.",
	})

	// LogPublishFailures counts failed appends to the durable log topic.
	LogPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskwire",
		Name:      "log_publish_failures_total",
		Help:      "Failed appends to the durable log topic.",
	})

	// QueuePublishFailures counts failed publishes to the email work queue.
	QueuePublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskwire",
		Name:      "queue_publish_failures_total",
		Help:      "Failed publishes to the email work queue.",
	})

	// EventsBroadcast counts events fanned out by the hub.
	EventsBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskwire",
		Name:      "events_broadcast_total",
		Help:      "Events fanned out to live subscribers.",
	})

	// SubscribersDropped counts subscribers removed for being slow or gone.
	SubscribersDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskwire",
		Name:      "subscribers_dropped_total",
		Help:      "Live subscribers dropped for being slow or gone.",
	})

	// EmailsProcessed counts worker deliveries by outcome: ok, retried, dead.
	EmailsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskwire",
		Name:      "emails_processed_total",
		Help:      "Email jobs processed by the worker, by outcome.",
	}, []string{"outcome"})
)
