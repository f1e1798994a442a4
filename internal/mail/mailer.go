// Package mail holds the email dispatch side effect executed by the work
// queue worker.
package mail

import (
	"context"
	"log/slog"

	"github.com/avelins/taskwire/pkg/event"
)

// Mailer simulates delivery of queued email jobs. Failure handling lives in
// the worker; a Mailer has no retry or partial-failure state of its own.
type Mailer struct{}

// Send records the email as sent.
func (Mailer) Send(_ context.Context, job event.EmailJob) error {
	slog.Info("email sent",
		"to", job.To,
		"subject", job.Subject,
		"message", job.Message)
	return nil
}
