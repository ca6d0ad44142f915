package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "coaching-platform/backend/internal/health/handler"
	mfahandler "coaching-platform/backend/internal/mfa/handler"
	"coaching-platform/backend/internal/server/interceptors"
)

// healthCheckMethod is served without a bearer token and is not logged.
const healthCheckMethod = "/grpc.health.v1.Health/Check"

// Deps holds the service dependencies for gRPC handlers.
type Deps struct {
	// MFA is the MFA orchestrator. If nil, MFAService RPCs return Unimplemented.
	MFA mfahandler.Service
	// HealthChecks are pinged by the health service for readiness (e.g. Postgres, Redis).
	HealthChecks []healthhandler.Check
	Logger       *zap.Logger
}

// RegisterServices registers all gRPC services with the given server.
//
// Service → handler mapping:
//   - coaching.mfa.v1.MFAService → internal/mfa/handler
//   - grpc.health.v1.Health      → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	mfahandler.RegisterMFAServiceServer(s, mfahandler.NewServer(deps.MFA, deps.Logger))
	healthpb.RegisterHealthServer(s, healthhandler.NewServer([]string{mfahandler.ServiceName}, deps.Logger, deps.HealthChecks...))
}

// NewGRPCServer returns a server with OpenTelemetry instrumentation, request logging and bearer
// authentication on every method except the health check.
func NewGRPCServer(tokens interceptors.AccessValidator, logger *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	public := map[string]bool{healthCheckMethod: true}
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.LoggingUnary(logger, public),
			interceptors.AuthUnary(tokens, public),
		),
	}
	return grpc.NewServer(append(base, opts...)...)
}
