package main

import (
	"parking-viewer/src/config"
	"parking-viewer/src/grpc_control"
	"parking-viewer/src/interfaces"
	"parking-viewer/src/logger"
)

// -----------------------------------------------------------------------------

// startServers orchestrates the startup of all server components
func startServers(
	srv interfaces.IDataExchanger,
	health *grpc_control.HealthReporter,
	config *config.Config,
	appLogger *logger.Logger,
) {

	// 1. View server (REST + WebSocket)
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("View server failed: %v", err)
		}
	}()

	// 2. gRPC health
	if health == nil {
		appLogger.Info("gRPC health disabled (grpc_port is 0)")
		return
	}
	go func() {
		appLogger.Info("Starting gRPC health on %s:%d", config.GrpcHost, config.GrpcPort)
		if err := health.Start(); err != nil {
			appLogger.Error("gRPC health failed: %v", err)
		}
	}()
}
