package interceptors

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingUnary returns a unary server interceptor that logs each RPC with its status code and
// duration. Server-side failures log at error, client errors at info.
// skipMethods is the set of full method names to not log (e.g. the health check).
func LoggingUnary(logger *zap.Logger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if skipMethods[info.FullMethod] {
			return resp, err
		}
		code := status.Code(err)
		userID, _ := GetUserID(ctx)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", ClientIP(ctx)),
		}
		if userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		switch code {
		case codes.Internal, codes.DataLoss, codes.Unknown, codes.Unavailable:
			logger.Error("grpc request failed", append(fields, zap.Error(err))...)
		default:
			logger.Info("grpc request", fields...)
		}
		return resp, err
	}
}
