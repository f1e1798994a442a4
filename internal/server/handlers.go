package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avelins/taskwire/pkg/event"
)

// handleTaskEvent is the hub ingress: it receives one EventRecord from the
// event publisher's relay call and hands it to the broadcast. The response
// does not wait for subscriber writes, which bounds relay latency.
func (s *Server) handleTaskEvent(w http.ResponseWriter, r *http.Request) {
	var rec event.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event payload"})
		return
	}
	if _, err := event.ParseType(string(rec.Type)); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	slog.Info("task event received", "type", rec.Type, "id", rec.ID)
	go s.hub.Broadcast(rec)

	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// handleStream holds the connection open and pushes every broadcast event as
// an SSE data frame. The subscriber is deregistered when the client goes
// away or a write fails.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	flusher.Flush()

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)

	slog.Info("stream subscriber connected", "subscribers", s.hub.Len())
	defer func() {
		slog.Info("stream subscriber disconnected", "subscribers", s.hub.Len())
	}()

	var keepalive <-chan time.Time
	if s.keepalive > 0 {
		ticker := time.NewTicker(s.keepalive)
		defer ticker.Stop()
		keepalive = ticker.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case payload, ok := <-sub.Events():
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handleSendEmail validates the request, queues the job and pushes an
// email_queued notice on the live stream. Per the delivery contract only
// validation failures are user-visible; a broker failure is logged and
// counted while the client still gets a success response.
func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	var job event.EmailJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := job.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := s.queue.Enqueue(r.Context(), job); err != nil {
		slog.Error("email enqueue failed", "to", job.To, "error", err)
	} else {
		go s.hub.Broadcast(event.NewEmailQueued(job))
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "Email queued"})
}

func (s *Server) handleHello(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "notification service is running"})
}
