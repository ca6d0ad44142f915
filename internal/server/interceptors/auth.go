package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const bearerPrefix = "bearer "

// AccessValidator validates an access token and returns its subject and session.
type AccessValidator interface {
	ValidateAccess(token string) (userID, sessionID string, err error)
}

// AuthUnary returns a unary server interceptor that validates the Bearer (access) token
// from gRPC metadata and sets user_id and session_id in context for protected RPCs.
// publicMethods is the set of full method names that do not require a Bearer token
// (e.g. the gRPC health check).
func AuthUnary(tokens AccessValidator, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		token := extractBearer(ctx)
		if token == "" || tokens == nil {
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}
		userID, sessionID, err := tokens.ValidateAccess(token)
		if err != nil || userID == "" {
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}
		return handler(WithIdentity(ctx, userID, sessionID), req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
