// Package grpchealth exposes the standard grpc_health_v1 health
// service plus reflection, reporting SERVING/NOT_SERVING per top-level
// component (controller, BT/Wi-Fi/Cellular mediators, proxy shard) so
// an operator can point grpcurl or a liveness probe at one well-known
// contract instead of a bespoke status RPC.
package grpchealth

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/wearos/connsupervisor/pkg/logger"
)

// Component names reported through the health service.
const (
	ComponentController = "controller"
	ComponentBT         = "bt_mediator"
	ComponentWifi       = "wifi_mediator"
	ComponentCellular   = "cellular_mediator"
	ComponentProxyShard = "proxy_shard"
)

// Server wraps a grpc.Server carrying only the health and reflection
// services; connsupervisord has no RPC surface of its own to export.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	log        *logger.Logger
}

// NewServer builds the health/reflection gRPC server and marks every
// named component NOT_SERVING until SetServing is called for it.
func NewServer(log *logger.Logger, components ...string) *Server {
	if log == nil {
		log = logger.Global()
	}
	h := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, h)
	reflection.Register(gs)

	for _, c := range components {
		h.SetServingStatus(c, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return &Server{grpcServer: gs, health: h, log: log}
}

// SetServing updates a single component's reported status.
func (s *Server) SetServing(component string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(component, status)
}

// Serve starts accepting connections on addr; blocks until the
// listener or server errors.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpchealth: listen on %s: %w", addr, err)
	}
	s.log.Info("grpc health server listening", "addr", addr)
	return s.grpcServer.Serve(lis)
}

// Stop gracefully stops the server and marks every component
// NOT_SERVING so in-flight health checks observe the shutdown.
func (s *Server) Stop(_ context.Context) {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
