package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// DefaultCheckTimeout bounds each dependency ping.
const DefaultCheckTimeout = 2 * time.Second

// Pinger checks one dependency. *pgxpool.Pool satisfies it; wrap Redis with PingerFunc.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Check is a named readiness dependency.
type Check struct {
	Name   string
	Pinger Pinger
}

// Server implements grpc.health.v1.Health for readiness. The overall status ("") and each
// registered service name report SERVING only when every check passes.
type Server struct {
	healthpb.UnimplementedHealthServer
	services map[string]bool
	checks   []Check
	timeout  time.Duration
	logger   *zap.Logger
}

// NewServer returns a health server for services. Nil pingers are skipped.
func NewServer(services []string, logger *zap.Logger, checks ...Check) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	known := map[string]bool{"": true}
	for _, s := range services {
		known[s] = true
	}
	return &Server{services: known, checks: checks, timeout: DefaultCheckTimeout, logger: logger}
}

// Check pings every dependency. A failed ping reports NOT_SERVING, never a gRPC error.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if !s.services[req.GetService()] {
		return nil, status.Error(codes.NotFound, "unknown service")
	}
	for _, c := range s.checks {
		if c.Pinger == nil {
			continue
		}
		pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := c.Pinger.Ping(pingCtx)
		cancel()
		if err != nil {
			s.logger.Warn("readiness check failed", zap.String("check", c.Name), zap.Error(err))
			return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
		}
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
