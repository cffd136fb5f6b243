package httpapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"taskhub.dev/internal/obs"
)

// GRPCHealth serves grpc.health.v1.Health backed by the readiness probe.
type GRPCHealth struct {
	healthpb.UnimplementedHealthServer

	readiness ReadyProbe
}

func NewGRPCHealth(r ReadyProbe) *GRPCHealth {
	if r == nil {
		r = ProbeFunc(nil)
	}
	return &GRPCHealth{readiness: r}
}

// Register attaches the health service to srv.
func (s *GRPCHealth) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, s)
}

// Check answers for the whole server ("") and for serviceName.
func (s *GRPCHealth) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	switch req.GetService() {
	case "", serviceName:
	default:
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	if err := s.readiness.Check(ctx); err != nil {
		obs.SetReady(false)
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	obs.SetReady(true)
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
