package grpchealth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestNewRegistersServingStatus(t *testing.T) {
	s := New()
	require.NotNil(t, s.health)

	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestSetNotServingFlipsStatus(t *testing.T) {
	s := New()
	s.SetNotServing()

	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}

func TestServeAndStop(t *testing.T) {
	s := New()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(context.Background(), "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)

	s.Stop()
	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}
