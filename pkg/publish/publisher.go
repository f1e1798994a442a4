// Package publish dispatches committed task mutations to the live-stream
// relay and the durable log. The two channels are independent by design:
// there is no shared transaction, and a failure on either is logged and
// counted but never surfaced to the mutation path.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/avelins/taskwire/internal/metrics"
	"github.com/avelins/taskwire/pkg/event"
)

// LogProducer appends one keyed message to the durable log.
type LogProducer interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Publisher fans one event out to the broadcast hub ingress and the durable
// log. Call Publish synchronously after the mutation commits; it blocks at
// most for the relay timeout and never reports failure to the caller.
type Publisher struct {
	relayURL string
	client   *http.Client
	log      LogProducer
}

// New creates a publisher. relayURL is the hub ingress endpoint; a zero
// timeout defaults to three seconds so the relay can never hold the caller's
// response open indefinitely.
func New(relayURL string, timeout time.Duration, log LogProducer) *Publisher {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Publisher{
		relayURL: relayURL,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

// Publish serializes rec once and dispatches it on both channels. Delivery
// to live subscribers is at-most-once best-effort; the log append is
// fire-and-forget with the failure counted.
func (p *Publisher) Publish(ctx context.Context, rec event.Record) {
	payload, err := json.Marshal(rec)
	if err != nil {
		slog.Error("event serialization failed", "type", rec.Type, "error", err)
		return
	}

	p.relay(ctx, rec, payload)
	p.append(ctx, rec, payload)
}

func (p *Publisher) relay(ctx context.Context, rec event.Record, payload []byte) {
	if p.relayURL == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.relayURL, bytes.NewReader(payload))
	if err != nil {
		slog.Warn("hub relay request invalid", "type", rec.Type, "error", err)
		metrics.RelayFailures.Inc()
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Warn("hub relay failed", "type", rec.Type, "id", rec.ID, "error", err)
		metrics.RelayFailures.Inc()
		return
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("hub relay rejected event", "type", rec.Type, "id", rec.ID, "status", resp.StatusCode)
		metrics.RelayFailures.Inc()
		return
	}

	slog.Debug("event relayed to hub", "type", rec.Type, "id", rec.ID)
}

func (p *Publisher) append(ctx context.Context, rec event.Record, payload []byte) {
	if p.log == nil {
		return
	}

	if err := p.log.Publish(ctx, rec.LogKey(), payload); err != nil {
		slog.Warn("log append failed", "key", rec.LogKey(), "id", rec.ID, "error", err)
		metrics.LogPublishFailures.Inc()
		return
	}

	slog.Debug("event appended to log", "key", rec.LogKey(), "id", rec.ID)
}
