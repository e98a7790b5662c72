package grpc_control

import (
	"context"
	"fmt"
	"net"

	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service key of the supervisor.
const ServiceName = "stocks-ngine.StocksManager"

// ControlService exposes the supervisor connection state through the standard
// gRPC health protocol. It is fed as a status publisher.
type ControlService struct {
	Config *models.MConfig
	Logger *logger.Logger
	Health *health.Server

	server *grpc.Server
}

// NewControlService starts NOT_SERVING until the first connection is made.
func NewControlService(cfg *models.MConfig, log *logger.Logger) *ControlService {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	s := &ControlService{
		Config: cfg,
		Logger: log,
		Health: hs,
		server: grpc.NewServer(),
	}
	s.Register(s.server)
	return s
}

// -----------------------------------------------------------------------------

// Register attaches the health and reflection services to gs.
func (s *ControlService) Register(gs *grpc.Server) {
	healthpb.RegisterHealthServer(gs, s.Health)
	reflection.Register(gs)
}

// -----------------------------------------------------------------------------

// Publish flips the serving status on connection state changes.
func (s *ControlService) Publish(_ context.Context, msg models.MStatusMessage) {
	state, ok := msg.(models.MConnectionStateMessage)
	if !ok {
		return
	}

	switch state.State {
	case models.ConnectionStateConnected:
		s.Health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	case models.ConnectionStateResetting:
		s.Health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	}
}

// -----------------------------------------------------------------------------

// Start listens on grpc_host:grpc_port and serves until Stop.
func (s *ControlService) Start() error {
	port := s.Config.GrpcPort
	if port == 0 {
		port = 50051
	}
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.Config.GrpcHost, port))
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC: %w", err)
	}
	s.Logger.Info("Starting gRPC health server on %s", lis.Addr())
	return s.Serve(lis)
}

// -----------------------------------------------------------------------------

func (s *ControlService) Serve(lis net.Listener) error {
	if err := s.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop drains in-flight calls, forcing a stop when ctx ends first.
func (s *ControlService) Stop(ctx context.Context) error {
	s.Health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
	}
	return nil
}
