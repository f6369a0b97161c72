package api

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// RegisterServices registers svc and a health service reporting SERVING
// for both the server as a whole and the planner service.
func RegisterServices(s grpc.ServiceRegistrar, svc *PlannerService) *health.Server {
	RegisterPlannerServiceServer(s, svc)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return hs
}
