package grpc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// NewServer builds a gRPC server with the lending service and the standard
// health service registered. The lending service starts out SERVING.
func NewServer(lending LendingServiceServer, log logrus.FieldLogger) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(log)))
	RegisterLendingServiceServer(srv, lending)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return srv, hs
}

// loggingInterceptor logs every unary call with its status code and duration.
func loggingInterceptor(log logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		entry := log.WithFields(logrus.Fields{
			"method":   info.FullMethod,
			"code":     status.Code(err).String(),
			"duration": time.Since(start).String(),
		})
		if err != nil {
			entry.Info("request failed")
		} else {
			entry.Debug("request handled")
		}
		return resp, err
	}
}
