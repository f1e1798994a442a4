// Package server is the HTTP surface of the notification hub process: the
// internal event ingress, the live SSE stream and the email enqueue endpoint.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avelins/taskwire/internal/hub"
	"github.com/avelins/taskwire/pkg/event"
)

// Enqueuer publishes one email job to the work queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job event.EmailJob) error
}

// Server wires the hub and the queue producer into HTTP handlers.
type Server struct {
	hub       *hub.Hub
	queue     Enqueuer
	keepalive time.Duration
}

// New creates a server. keepalive is the SSE comment interval; zero disables
// keep-alives.
func New(h *hub.Hub, q Enqueuer, keepalive time.Duration) *Server {
	return &Server{hub: h, queue: q, keepalive: keepalive}
}

// Router assembles the chi routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/internal/task-event", s.handleTaskEvent)
	r.Get("/notifications/stream", s.handleStream)
	r.Post("/notifications/send-email", s.handleSendEmail)
	r.Get("/notifications/hello", s.handleHello)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
