// Package grpc exposes the relay's health over the standard gRPC health
// protocol and provides the client used to probe it.
package grpc

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name of the refresh pipeline. The empty
// service name reports whether the process is up at all.
const ServiceName = "devtracker.Relay"

// HealthServer serves grpc.health.v1.Health.
type HealthServer struct {
	addr   string
	server *grpc.Server
	health *health.Server
	log    *logrus.Entry

	mu       sync.Mutex
	listener net.Listener
}

// NewHealthServer creates a server reporting NOT_SERVING for ServiceName
// until the first refresh cycle succeeds.
func NewHealthServer(addr string, log *logrus.Entry) *HealthServer {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	return &HealthServer{addr: addr, server: server, health: hs, log: log}
}

// SetServing updates the status of ServiceName.
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(ServiceName, status)
}

// Start listens on the configured address and serves in the background.
func (h *HealthServer) Start() error {
	lis, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.addr, err)
	}
	h.mu.Lock()
	h.listener = lis
	h.mu.Unlock()

	h.log.Infof("gRPC health service listening on %s", lis.Addr())
	go func() {
		if err := h.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			h.log.WithError(err).Error("gRPC health service stopped")
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (h *HealthServer) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

// Stop marks every service NOT_SERVING and drains open RPCs.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
