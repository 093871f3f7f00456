package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HTTPServer manages the API listener lifecycle.
type HTTPServer struct {
	server   *http.Server
	logger   *slog.Logger
	listener net.Listener
}

// NewHTTPServer wraps handler in an http.Server. requestTimeout bounds
// reading and writing a single request.
func NewHTTPServer(host string, port int, handler http.Handler, requestTimeout time.Duration, logger *slog.Logger) (*HTTPServer, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if requestTimeout <= 0 {
		return nil, fmt.Errorf("request timeout must be positive, got %v", requestTimeout)
	}

	return &HTTPServer{
		server: &http.Server{
			Addr:              net.JoinHostPort(host, fmt.Sprint(port)),
			Handler:           handler,
			ReadHeaderTimeout: requestTimeout,
			ReadTimeout:       requestTimeout,
			// Exceeds the handler deadline so timeouts surface as 504 responses.
			WriteTimeout: requestTimeout + 5*time.Second,
		},
		logger: logger,
	}, nil
}

// Listen binds the listener.
func (s *HTTPServer) Listen() error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.server.Addr, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *HTTPServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Serve blocks until Shutdown is called. A clean shutdown returns nil.
func (s *HTTPServer) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.logger.Info("http api listening", "addr", s.Addr())
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx ends.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
