package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const shutdownTimeout = 10 * time.Second

// HTTPServerWorker serves the API until its context is canceled.
type HTTPServerWorker struct {
	srv *http.Server
	log *slog.Logger
}

func NewHTTPServerWorker(srv *http.Server, log *slog.Logger) *HTTPServerWorker {
	return &HTTPServerWorker{srv: srv, log: log}
}

func (w *HTTPServerWorker) Name() string {
	return "http " + w.srv.Addr
}

func (w *HTTPServerWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.srv.Addr, err)
	}
	return w.Serve(ctx, listener)
}

// Serve runs the server on an existing listener.
func (w *HTTPServerWorker) Serve(ctx context.Context, listener net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting HTTP server", "address", listener.Addr().String())
		if err := w.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case err, ok := <-errChan:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	w.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := w.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
