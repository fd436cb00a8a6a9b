// Package grpchealth registers the standard grpc_health_v1.Health service,
// giving orchestrators (k8s, nomad) a liveness/readiness probe independent
// of the HTTP Gateway (§6.1).
package grpchealth

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/podwise/hrap/internal/logger"
)

// ServiceName is the health check's target, matching the process's own
// identity rather than a per-dependency name; per-dependency health lives
// in the Gateway's /health JSON, not this probe.
const ServiceName = "hrap"

// Server wraps the grpc health server and the gRPC listener serving it.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
}

// New builds a Server and registers it as SERVING. Callers flip it to
// NOT_SERVING during shutdown via SetNotServing.
func New() *Server {
	h := health.NewServer()
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, h)

	return &Server{grpcServer: gs, health: h}
}

// SetNotServing flips the reported status, used during graceful shutdown so
// orchestrators stop routing new traffic before the process actually exits.
func (s *Server) SetNotServing() {
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Serve blocks accepting gRPC health-check connections on addr.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logger.Infof(ctx, "grpchealth: serving on %s", addr)
	return s.grpcServer.Serve(lis)
}

// Stop gracefully shuts down the gRPC server.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}
