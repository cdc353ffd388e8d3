package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Load balancers probe Check without credentials.
var publicMethods = map[string]struct{}{
	healthpb.Health_Check_FullMethodName: {},
}

// UnaryInterceptor rejects unary calls without a valid bearer token.
func (s Signer) UnaryInterceptor(ctx context.Context, req any,
	info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	ctx, err := s.authenticate(ctx, info.FullMethod)
	if err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

// StreamInterceptor does the same for streams, Health/Watch among them.
func (s Signer) StreamInterceptor(srv any, ss grpc.ServerStream,
	info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx, err := s.authenticate(ss.Context(), info.FullMethod)
	if err != nil {
		return err
	}
	return handler(srv, &claimsStream{ServerStream: ss, ctx: ctx})
}

func (s Signer) authenticate(ctx context.Context, method string) (context.Context, error) {
	if _, ok := publicMethods[method]; ok {
		return ctx, nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "metadata is missing")
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return nil, status.Error(codes.Unauthenticated, "authorization token is missing")
	}
	token, ok := bearer(values[0])
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authorization token is missing")
	}
	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
	}
	return withClaims(ctx, claims), nil
}

// claimsStream carries the authenticated context down to the stream handler.
type claimsStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *claimsStream) Context() context.Context {
	return s.ctx
}
