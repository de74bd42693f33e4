package main

import (
	"context"
	"time"

	"parking-viewer/src/config"
	"parking-viewer/src/grpc_control"
	"parking-viewer/src/interfaces"
	"parking-viewer/src/logger"
	"parking-viewer/src/models"
	"parking-viewer/src/network"
	"parking-viewer/src/server"
	"parking-viewer/src/session"
	"parking-viewer/src/simclient"
	"parking-viewer/src/storage"
)

// -----------------------------------------------------------------------------

// setupRecorder opens the optional metrics store. Both results are nil when
// storage is disabled.
func setupRecorder(ctx context.Context, config *models.MConfig, appLogger *logger.Logger) (interfaces.IDatabase, *storage.Recorder, error) {
	db, err := storage.NewDatabase(config, logger.NewLogger(config, "Storage"))
	if err != nil {
		return nil, nil, err
	}
	if db == nil {
		appLogger.Info("Metrics recording disabled")
		return nil, nil, nil
	}
	if err := db.Initialize(); err != nil {
		return nil, nil, err
	}

	recorder := storage.NewRecorder(db, logger.NewLogger(config, "Recorder"))
	recorder.Start(ctx)
	appLogger.Info("Recording metrics to %s", config.Storage.DBType)
	return db, recorder, nil
}

// -----------------------------------------------------------------------------

// setupNetwork initializes the network manager
func setupNetwork(config *models.MConfig) interfaces.INetworkManager {
	networkLogger := logger.NewLogger(config, "NetworkManager")
	return network.NewAsyncNetworkManager(config, networkLogger)
}

// -----------------------------------------------------------------------------

// setupSimulationClient binds the network manager to the simulation backend
func setupSimulationClient(config *models.MConfig, networkManager interfaces.INetworkManager) interfaces.ISimulationClient {
	clientLogger := logger.NewLogger(config, "SimulationClient")
	return simclient.NewHTTPSimulationClient(config.Simulation.BaseURL, networkManager, clientLogger)
}

// -----------------------------------------------------------------------------

// setupController builds the session controller and its polling cadence
func setupController(ctx context.Context, config *models.MConfig, client interfaces.ISimulationClient) *session.SyncController {
	cadence := session.NewTickerCadence(time.Duration(config.Simulation.CadenceMillis) * time.Millisecond)
	opts := session.Options{
		HistoryCapacity: config.Simulation.HistoryCapacity,
		AutoRetry:       time.Duration(config.Simulation.AutoRetrySeconds) * time.Second,
	}
	return session.NewSyncController(ctx, client, cadence, opts, logger.NewLogger(config, "SyncController"))
}

// -----------------------------------------------------------------------------

// setupServers builds the view server and, when a gRPC port is set, the health reporter
func setupServers(conf *config.Config, control interfaces.ISessionControl) (*server.ViewServer, *grpc_control.HealthReporter) {
	srv := server.NewViewServer(conf, control, logger.NewLogger(conf.MConfig, "ViewServer"))

	var health *grpc_control.HealthReporter
	if conf.GrpcPort != 0 {
		health = grpc_control.NewHealthReporter(conf.MConfig, logger.NewLogger(conf.MConfig, "Health"))
	}
	return srv, health
}
