package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avelins/taskwire/internal/config"
	"github.com/avelins/taskwire/internal/hub"
	"github.com/avelins/taskwire/internal/queue"
	"github.com/avelins/taskwire/internal/server"
)

// runServe starts the notification hub process.
func runServe(ctx context.Context, cfg *config.Config) error {
	h := hub.New(cfg.Hub.BufferSize)
	defer h.Close()

	producer := queue.NewProducer(cfg.Queue.URL, cfg.Queue.Name)
	defer func() { _ = producer.Close() }()

	srv := server.New(h, producer, cfg.Hub.Keepalive)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:        addr,
		Handler:     srv.Router(),
		ReadTimeout: 30 * time.Second,
		// No write timeout: the SSE stream stays open until the client
		// disconnects.
		WriteTimeout: 0,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("notification hub is ready", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return httpSrv.Shutdown(shutdownCtx)
}
