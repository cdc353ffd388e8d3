// Package server exposes the standard grpc.health.v1 service,
// with one status per chat mode next to the overall one.
package server

import (
	"cad-lab/auth"
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// HealthServer wraps the grpc health implementation with the team names
// it reports on.
type HealthServer struct {
	*health.Server
	teams []string
}

// NewServer builds the gRPC server. Every team starts NOT_SERVING until
// SetServing is called. A nil signer disables authentication.
func NewServer(log *slog.Logger, signer *auth.Signer, teams []string) (*grpc.Server, *HealthServer) {
	unary := []grpc.UnaryServerInterceptor{UnaryLoggingInterceptor(log)}
	var stream []grpc.StreamServerInterceptor
	if signer != nil {
		unary = append(unary, signer.UnaryInterceptor)
		stream = append(stream, signer.StreamInterceptor)
	}
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(unary...), grpc.ChainStreamInterceptor(stream...))

	hs := &HealthServer{Server: health.NewServer(), teams: teams}
	hs.set(healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

// SetServing marks the server and every team as ready.
func (h *HealthServer) SetServing() {
	h.set(healthpb.HealthCheckResponse_SERVING)
}

// Stop reports every status as NOT_SERVING and ends the watch streams.
func (h *HealthServer) Stop() {
	h.Shutdown()
}

func (h *HealthServer) set(s healthpb.HealthCheckResponse_ServingStatus) {
	h.SetServingStatus("", s)
	for _, team := range h.teams {
		h.SetServingStatus(team, s)
	}
}

// UnaryLoggingInterceptor logs every call with its duration and status code.
func UnaryLoggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		attrs := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
		if err != nil {
			log.Warn("gRPC call failed", append(attrs, "error", err)...)
		} else {
			log.Debug("gRPC call", attrs...)
		}
		return resp, err
	}
}
