package grpc

import (
	"context"
	"net"
	"time"

	jww "github.com/spf13/jwalterweatherman"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"crewlink/internal/observability"
)

// ServiceName is the health entry reported for the chat backend as a whole.
const ServiceName = "crewlink.Chat"

// HealthServer serves the standard gRPC health protocol for orchestrators.
type HealthServer struct {
	server *grpclib.Server
	health *health.Server
}

// NewHealthServer builds a gRPC server with tracing and metrics that answers health
// checks. Every service starts as NOT_SERVING until Watch or SetServing says otherwise.
func NewHealthServer() *HealthServer {
	srv := grpclib.NewServer(
		grpclib.StatsHandler(otelgrpc.NewServerHandler()),
		grpclib.UnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return &HealthServer{server: srv, health: hs}
}

// SetServing flips the overall and service entries together.
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Watch runs check every interval until ctx ends and reports the result as the serving
// status. The first check runs immediately.
func (s *HealthServer) Watch(ctx context.Context, interval time.Duration, check func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		err := check(ctx)
		if (err == nil) != healthy {
			jww.WARN.Printf("health changed: serving=%t err=%v", err == nil, err)
		}
		healthy = err == nil
		s.SetServing(healthy)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Serve blocks serving on lis.
func (s *HealthServer) Serve(lis net.Listener) error {
	jww.INFO.Printf("grpc health listening on %s", lis.Addr())
	return s.server.Serve(lis)
}

// Stop reports NOT_SERVING and drains in-flight calls.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
