package grpc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/simaogato/minefund-backend/internal/metrics"
)

// AuthInterceptor returns a gRPC unary server interceptor that validates
// the authorization token from request metadata.
// A "Bearer " prefix is accepted. If the token is missing or invalid,
// it returns status.Unauthenticated.
func AuthInterceptor(validToken string) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}

		if strings.TrimPrefix(authHeaders[0], "Bearer ") != validToken {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		return handler(ctx, req)
	}
}

// ObservabilityInterceptor logs every call and records request count and latency
func ObservabilityInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)

		code := status.Code(err)
		method := methodName(info.FullMethod)
		metrics.GRPCRequestsTotal.WithLabelValues(method, code.String()).Inc()
		metrics.GRPCRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())

		attrs := []any{"method", method, "code", code.String(), "duration", elapsed}
		switch code {
		case codes.OK:
			log.Debug("grpc request", attrs...)
		case codes.Internal, codes.Unknown, codes.DataLoss:
			log.Error("grpc request failed", append(attrs, "error", err)...)
		default:
			log.Info("grpc request rejected", append(attrs, "error", err)...)
		}

		return resp, err
	}
}

// RateLimitInterceptor rejects calls to the given methods once limiter is exhausted
// Methods are matched by short name, e.g. "TransferProfit"
func RateLimitInterceptor(limiter *rate.Limiter, methods ...string) grpc.UnaryServerInterceptor {
	limited := make(map[string]bool, len(methods))
	for _, m := range methods {
		limited[m] = true
	}

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if limited[methodName(info.FullMethod)] && !limiter.Allow() {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

// methodName strips the service prefix from a full gRPC method name
func methodName(fullMethod string) string {
	if i := strings.LastIndex(fullMethod, "/"); i >= 0 {
		return fullMethod[i+1:]
	}
	return fullMethod
}
