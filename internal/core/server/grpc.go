// Package server provides HTTP and gRPC server lifecycle management.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// shutdownGrace bounds graceful stop before a forced stop.
const shutdownGrace = 30 * time.Second

// HealthServer exposes the standard grpc.health.v1 service so orchestrators
// can probe farekeeper without speaking HTTP.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	addr     string
	logger   *slog.Logger
	listener net.Listener
}

// NewHealthServer creates the gRPC server with health registration.
// Port 0 binds an ephemeral port.
// Status starts NOT_SERVING; call SetServing once the HTTP API is up.
func NewHealthServer(host string, port int, logger *slog.Logger) (*HealthServer, error) {
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid grpc port %d", port)
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	server := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{
		server: server,
		health: healthServer,
		addr:   net.JoinHostPort(host, fmt.Sprint(port)),
		logger: logger,
	}, nil
}

// Listen binds the listener. Split from Serve so callers learn about bind
// failures before reporting the service as started.
func (s *HealthServer) Listen() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.addr, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *HealthServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Serve blocks until Shutdown is called.
func (s *HealthServer) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.logger.Info("grpc health server listening", "addr", s.Addr())
	return s.server.Serve(s.listener)
}

// SetServing flips the overall health status.
func (s *HealthServer) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

// Shutdown marks the service NOT_SERVING and stops gracefully, forcing a
// stop when ctx ends or the grace period elapses.
func (s *HealthServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(shutdownGrace):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}
