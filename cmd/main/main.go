package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"parking-viewer/src/config"
	"parking-viewer/src/logger"
)

func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	persistParams := flag.Bool("persist-params", false, "write parameter changes back to the config file")
	flag.Parse()

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf.MConfig, conf.Name)

	// Lifecycle Management
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Setup Components
	db, recorder, err := setupRecorder(ctx, conf.MConfig, appLogger)
	if err != nil {
		appLogger.Critical("Failed to init storage: %v", err)
	}

	networkManager := setupNetwork(conf.MConfig)
	client := setupSimulationClient(conf.MConfig, networkManager)
	// Close cancels the session's requests; a signal must not look like a transport failure
	controller := setupController(context.Background(), conf.MConfig, client)

	srv, health := setupServers(conf, controller)
	if *persistParams {
		srv.ConfigPath = *configPath
	}

	// 5. Wire sinks and listeners before the first session starts
	controller.AddFrameSink(srv)
	if health != nil {
		controller.AddStateListener(health)
	}
	if recorder != nil {
		controller.AddFrameSink(recorder)
	}

	// 6. Start Servers
	startServers(srv, health, conf, appLogger)

	// 7. First session
	if conf.Simulation.AutoStart {
		go func() {
			if err := controller.Start(conf.DefaultParams()); err != nil {
				appLogger.Warning("Initial session did not start: %v", err)
			}
		}()
	} else {
		appLogger.Info("Waiting for a start command on http://%s:%d/api/session/start", conf.Host, conf.Port)
	}

	// 8. Block until signalled
	<-ctx.Done()
	appLogger.Info("Shutting down...")

	controller.Close()
	if err := srv.Stop(); err != nil {
		appLogger.Warning("View server shutdown: %v", err)
	}
	if health != nil {
		health.Stop()
	}
	if recorder != nil {
		recorder.Stop()
	}
	if db != nil {
		if err := db.Close(); err != nil {
			appLogger.Warning("Database close: %v", err)
		}
	}
	appLogger.Info("Shutdown complete.")
}
