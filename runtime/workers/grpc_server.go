package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
)

// GRPCServerWorker serves gRPC until its context is canceled, then stops
// gracefully. OnStart runs once the listener is open, OnStop right before
// the graceful stop.
type GRPCServerWorker struct {
	srv     *grpc.Server
	address string
	log     *slog.Logger
	OnStart func()
	OnStop  func()
}

func NewGRPCServerWorker(srv *grpc.Server, address string, log *slog.Logger) *GRPCServerWorker {
	return &GRPCServerWorker{srv: srv, address: address, log: log}
}

func (w *GRPCServerWorker) Name() string {
	return "grpc " + w.address
}

func (w *GRPCServerWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.address, err)
	}

	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting gRPC server", "address", listener.Addr().String())
		for serviceName := range w.srv.GetServiceInfo() {
			w.log.Debug("gRPC exposed services", "name", serviceName)
		}
		if err := w.srv.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
		close(errChan)
	}()
	if w.OnStart != nil {
		w.OnStart()
	}

	select {
	case err, ok := <-errChan:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	w.log.Info("Shutting down gRPC server")
	if w.OnStop != nil {
		w.OnStop()
	}
	stopped := make(chan struct{})
	go func() {
		w.srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		w.log.Warn("gRPC streams still open, forcing stop")
		w.srv.Stop()
	}
	return nil
}
