package grpc

import (
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/ajkula/notifytrigger/domain/model"
	"github.com/ajkula/notifytrigger/domain/port/inbound"
	"github.com/ajkula/notifytrigger/domain/port/outbound"
)

// PipelineServiceName is the health service name reporting the pipeline state
const PipelineServiceName = "notifytrigger.Pipeline"

// Server exposes the standard gRPC health protocol driven by pipeline status
type Server struct {
	health     *health.Server
	grpcServer *grpc.Server
	listener   net.Listener
	logger     outbound.Logger
}

func NewServer(publisher inbound.StatusPublisher, logger outbound.Logger) *Server {
	s := &Server{
		health: health.NewServer(),
		logger: logger,
	}

	// not serving until the funnel starts
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.health.SetServingStatus(PipelineServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	publisher.AddListener(s.onStatus)
	return s
}

// onStatus maps pipeline status to serving status
func (s *Server) onStatus(status model.PipelineStatus) {
	serving := healthpb.HealthCheckResponse_NOT_SERVING
	running := status.FunnelState == model.FunnelCatchingUp || status.FunnelState == model.FunnelSubscribed
	if status.Healthy() && running {
		serving = healthpb.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus("", serving)
	s.health.SetServingStatus(PipelineServiceName, serving)
}

// Start starts the gRPC server
func (s *Server) Start(address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = lis

	s.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)

	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			s.logger.Error("gRPC server stopped", "error", err)
		}
	}()

	s.logger.Info("gRPC health server started", "address", lis.Addr().String())
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop stops the gRPC server, forcing it after a timeout
func (s *Server) Stop() {
	if s.grpcServer == nil {
		return
	}

	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Info("gRPC server stopped gracefully")
	case <-time.After(10 * time.Second):
		s.logger.Warn("gRPC server stop timed out, forcing shutdown")
		s.grpcServer.Stop()
	}
}
