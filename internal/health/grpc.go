package health

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported for the booking engine.
const ServiceName = "courtbook.v1.Bookings"

// NewGRPCServer returns a gRPC server exposing the standard health service.
func NewGRPCServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

// Sync mirrors c.Ready into hs every interval until ctx is done, then marks
// everything NOT_SERVING.
func (c *Checker) Sync(ctx context.Context, hs *health.Server, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	update := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if err := c.Ready(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			logger.Warn().Err(err).Msg("readiness check failed")
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(ServiceName, status)
	}

	update()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			update()
		}
	}
}
