package grpchealth

import (
	"context"
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestNewServerStartsComponentsNotServing(t *testing.T) {
	s := NewServer(nil, ComponentController, ComponentBT)

	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ComponentController})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status = %v, want NOT_SERVING", resp.Status)
	}
}

func TestSetServingFlipsStatus(t *testing.T) {
	s := NewServer(nil, ComponentBT)
	s.SetServing(ComponentBT, true)

	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ComponentBT})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v, want SERVING", resp.Status)
	}
}

func TestOverallServiceReportsServing(t *testing.T) {
	s := NewServer(nil)

	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ""})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("overall status = %v, want SERVING", resp.Status)
	}
}
