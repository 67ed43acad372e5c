package adaptor

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported next to the overall
// server status.
const ServiceName = "lounge.Presence"

// AdminServer exposes grpc.health.v1 and server reflection.
type AdminServer struct {
	server *grpc.Server
	health *health.Server
}

func NewAdminServer(opts ...grpc.ServerOption) *AdminServer {
	s := grpc.NewServer(opts...)
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	reflection.Register(s)
	return &AdminServer{server: s, health: h}
}

func (s *AdminServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *AdminServer) Serve(lis net.Listener) error {
	s.SetServing(true)
	return s.server.Serve(lis)
}

// Shutdown reports NOT_SERVING and stops the server, forcing it when ctx
// expires first.
func (s *AdminServer) Shutdown(ctx context.Context) error {
	s.SetServing(false)
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return ctx.Err()
	}
}
