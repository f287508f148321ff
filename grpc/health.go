// Package grpc exposes the stream state over the standard gRPC health
// checking protocol.
package grpc

import (
	"fmt"
	"log"
	"net"
	"sync"

	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"tweet-relay/stream"
)

// ServiceName is the health service name reporting the stream state.
// The empty service name reports the same status.
const ServiceName = "tweetrelay.Stream"

// HealthServer serves grpc.health.v1.Health.
type HealthServer struct {
	addr   string
	server *grpc.Server
	health *health.Server

	mu  sync.Mutex
	lis net.Listener
}

// NewHealthServer creates a server that will listen on addr. The stream
// starts out NOT_SERVING.
func NewHealthServer(addr string) *HealthServer {
	h := &HealthServer{
		addr:   addr,
		server: grpc.NewServer(),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(h.server, h.health)
	h.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Start listens and serves in the background.
func (h *HealthServer) Start() error {
	lis, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.addr, err)
	}

	h.mu.Lock()
	h.lis = lis
	h.mu.Unlock()

	go func() {
		if err := h.server.Serve(lis); err != nil {
			log.Printf("[gRPC] Health server stopped: %v", err)
		}
	}()
	log.Printf("[gRPC] Health server listening on %s", lis.Addr())
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (h *HealthServer) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lis != nil {
		return h.lis.Addr().String()
	}
	return h.addr
}

// SetStreamState maps a controller state onto the serving status.
func (h *HealthServer) SetStreamState(s stream.State) {
	if s == stream.StateStreaming {
		h.setStatus(healthpb.HealthCheckResponse_SERVING)
		return
	}
	h.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
}

func (h *HealthServer) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
}

// Stop marks every service NOT_SERVING and stops the server.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
