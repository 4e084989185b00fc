package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/simaogato/minefund-backend/internal/testutil"
)

func TestAuthInterceptor(t *testing.T) {
	validToken := "test-token-123"
	interceptor := AuthInterceptor(validToken)

	tests := []struct {
		name           string
		ctx            context.Context
		handlerCalled  bool
		expectedCode   codes.Code
		expectedErrMsg string
	}{
		{
			name: "Valid Token",
			ctx: metadata.NewIncomingContext(
				context.Background(),
				metadata.Pairs("authorization", validToken),
			),
			handlerCalled:  true,
			expectedCode:   codes.OK,
			expectedErrMsg: "",
		},
		{
			name: "Invalid Token",
			ctx: metadata.NewIncomingContext(
				context.Background(),
				metadata.Pairs("authorization", "wrong-token"),
			),
			handlerCalled:  false,
			expectedCode:   codes.Unauthenticated,
			expectedErrMsg: "invalid token",
		},
		{
			name:           "Missing Token",
			ctx:            context.Background(),
			handlerCalled:  false,
			expectedCode:   codes.Unauthenticated,
			expectedErrMsg: "missing metadata",
		},
		{
			name: "Missing Authorization Header",
			ctx: metadata.NewIncomingContext(
				context.Background(),
				metadata.Pairs("other-header", "value"),
			),
			handlerCalled:  false,
			expectedCode:   codes.Unauthenticated,
			expectedErrMsg: "missing authorization header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				handlerCalled = true
				return "success", nil
			}

			info := &grpc.UnaryServerInfo{
				FullMethod: "/test.Service/Method",
			}

			resp, err := interceptor(tt.ctx, "test-request", info, handler)

			assert.Equal(t, tt.handlerCalled, handlerCalled, "handler called status mismatch")

			if tt.expectedCode == codes.OK {
				assert.NoError(t, err)
				assert.Equal(t, "success", resp)
			} else {
				assert.Error(t, err)
				st, ok := status.FromError(err)
				assert.True(t, ok, "error should be a gRPC status")
				assert.Equal(t, tt.expectedCode, st.Code())
				assert.Contains(t, st.Message(), tt.expectedErrMsg)
			}
		})
	}
}

func TestAuthInterceptor_BearerPrefix(t *testing.T) {
	interceptor := AuthInterceptor("secret")
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer secret"))

	resp, err := interceptor(ctx, "req", &grpc.UnaryServerInfo{FullMethod: "/x.Y/Z"}, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestRateLimitInterceptor(t *testing.T) {
	// Burst of one, no refill during the test
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	interceptor := RateLimitInterceptor(limiter, "TransferProfit")
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }

	transferInfo := &grpc.UnaryServerInfo{FullMethod: "/minefund.v1.MiningService/TransferProfit"}
	otherInfo := &grpc.UnaryServerInfo{FullMethod: "/minefund.v1.MiningService/GetEligibility"}

	_, err := interceptor(context.Background(), nil, transferInfo, handler)
	assert.NoError(t, err)

	_, err = interceptor(context.Background(), nil, transferInfo, handler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	for i := 0; i < 3; i++ {
		_, err = interceptor(context.Background(), nil, otherInfo, handler)
		assert.NoError(t, err, "unlimited methods must pass through")
	}
}

func TestObservabilityInterceptor_PassesThrough(t *testing.T) {
	interceptor := ObservabilityInterceptor(testutil.NewLogger())
	info := &grpc.UnaryServerInfo{FullMethod: "/minefund.v1.MiningService/StartMining"}
	wantErr := status.Error(codes.NotFound, "missing")

	resp, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "partial", wantErr
	})

	assert.Equal(t, "partial", resp)
	assert.Equal(t, wantErr, err)
}

func TestMethodName(t *testing.T) {
	assert.Equal(t, "StartMining", methodName("/minefund.v1.MiningService/StartMining"))
	assert.Equal(t, "bare", methodName("bare"))
}
