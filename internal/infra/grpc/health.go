// Package grpcserver exposes the standard gRPC health service backed by the
// same readiness checks as the HTTP /readyz endpoint.
package grpcserver

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported next to the overall status.
const ServiceName = "carrental.v1.Reservations"

// Prober is satisfied by obs.HealthHandlers.
type Prober interface {
	Ready(ctx context.Context) error
}

type Server struct {
	GRPC   *grpc.Server
	health *health.Server
	prober Prober
	logger *slog.Logger
}

func NewServer(prober Prober, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		GRPC:   grpc.NewServer(),
		health: health.NewServer(),
		prober: prober,
		logger: logger,
	}
	healthpb.RegisterHealthServer(s.GRPC, s.health)
	reflection.Register(s.GRPC)
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Refresh runs the probe once and publishes the result.
func (s *Server) Refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.prober != nil {
		if err := s.prober.Ready(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			s.logger.Warn("grpc health probe failed", "error", err)
		}
	}
	s.setStatus(status)
}

// Watch refreshes the status every interval until ctx is done, then marks
// the server as shutting down.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	s.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
