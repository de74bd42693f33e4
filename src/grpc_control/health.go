// Package grpc_control exposes the session state to orchestration through the
// standard gRPC health checking protocol.
package grpc_control

import (
	"fmt"
	"net"
	"sync"

	"parking-viewer/src/logger"
	"parking-viewer/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// SessionService is the health service name that tracks the viewer session.
const SessionService = "parking.viewer.Session"

// -----------------------------------------------------------------------------

// HealthReporter maps session transitions to gRPC health statuses. The
// process itself stays SERVING; SessionService follows the session.
type HealthReporter struct {
	Config *models.MConfig
	Logger *logger.Logger

	health *health.Server
	mu     sync.Mutex
	server *grpc.Server
}

// -----------------------------------------------------------------------------

func NewHealthReporter(cfg *models.MConfig, log *logger.Logger) *HealthReporter {
	h := health.NewServer()
	h.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	h.SetServingStatus(SessionService, grpc_health_v1.HealthCheckResponse_UNKNOWN)
	return &HealthReporter{
		Config: cfg,
		Logger: log,
		health: h,
	}
}

// -----------------------------------------------------------------------------

// StatusFor is the health status reported while the session is in state.
func StatusFor(state models.SessionState) grpc_health_v1.HealthCheckResponse_ServingStatus {
	switch state {
	case models.StateRunning, models.StatePaused:
		return grpc_health_v1.HealthCheckResponse_SERVING
	case models.StateDegraded:
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	default:
		return grpc_health_v1.HealthCheckResponse_UNKNOWN
	}
}

// OnStateChange implements interfaces.IStateListener.
func (r *HealthReporter) OnStateChange(from, to models.SessionState) {
	status := StatusFor(to)
	r.health.SetServingStatus(SessionService, status)
	r.Logger.Debug("Health %s -> %s", SessionService, status)
}

// HealthServer is the underlying grpc_health_v1 implementation.
func (r *HealthReporter) HealthServer() grpc_health_v1.HealthServer {
	return r.health
}

// -----------------------------------------------------------------------------

// Serve registers the health service on a new gRPC server and blocks on lis.
func (r *HealthReporter) Serve(lis net.Listener) error {
	srv := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, r.health)
	reflection.Register(srv)

	r.mu.Lock()
	r.server = srv
	r.mu.Unlock()

	r.Logger.Info("gRPC health listening on %s", lis.Addr())
	if err := srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc health server: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Start listens on grpc_host:grpc_port and serves until Stop.
func (r *HealthReporter) Start() error {
	addr := fmt.Sprintf("%s:%d", r.Config.GrpcHost, r.Config.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return r.Serve(lis)
}

// -----------------------------------------------------------------------------

func (r *HealthReporter) Stop() {
	// Watchers see NOT_SERVING before the connection goes away
	r.health.Shutdown()

	r.mu.Lock()
	srv := r.server
	r.mu.Unlock()
	if srv != nil {
		srv.GracefulStop()
	}
}
