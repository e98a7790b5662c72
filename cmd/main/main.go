package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stocks-ngine/src/config"
	"stocks-ngine/src/grpc_control"
	"stocks-ngine/src/helpers"
	"stocks-ngine/src/logger"
	"stocks-ngine/src/publisher"
	"stocks-ngine/src/registry"
	"stocks-ngine/src/server"
	"stocks-ngine/src/supervisor"
	"stocks-ngine/src/trace"
)

const (
	shutdownTimeout = 10 * time.Second
	loadRetries     = 5
	loadBackoff     = 5 * time.Second
)

// -----------------------------------------------------------------------------

func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger and tracing
	appLogger := logger.NewLogger(conf, conf.Name)
	if err := trace.Init(conf.Tracing); err != nil {
		appLogger.Warning("Tracing disabled: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Setup Components
	db, err := setupDatabase(conf.MConfig, appLogger)
	if err != nil {
		os.Exit(1)
	}

	proxyManager, networkManager := setupNetwork(conf.MConfig)
	factory := setupBroker(conf.MConfig, networkManager, proxyManager)

	model := registry.NewMainModel(conf.MConfig, db, logger.NewLogger(conf, "MainModel"))
	fanout := publisher.NewStatusFanout()
	closers := setupPublishers(ctx, conf.MConfig, fanout, model, appLogger)

	// 5. Supervisor
	manager, err := supervisor.NewStocksManager(conf.MConfig, supervisor.Collaborators{
		Registry:  model,
		Notifier:  model,
		Publisher: fanout,
		Settings:  conf,
		Factory:   factory,
		Store:     db,
	}, logger.NewLogger(conf, "StocksManager"))
	if err != nil {
		appLogger.Critical("Failed to create supervisor: %v", err)
	}

	// 6. Servers
	srv := server.NewAPIServer(conf.MConfig, model, model, manager, logger.NewLogger(conf, "APIServer"))
	control := grpc_control.NewControlService(conf.MConfig, logger.NewLogger(conf, "ControlService"))
	fanout.Add(srv)
	fanout.Add(control)
	model.AddNotifier(srv)
	startServers(srv, control, appLogger)

	// 7. Connect and subscribe
	if err := manager.Init(ctx); err != nil {
		appLogger.Critical("Failed to start supervisor: %v", err)
	}
	// A reset also reloads the universe while the registry is still empty
	err = helpers.RetryWithBackoff(ctx, appLogger, "instrument load", loadRetries, loadBackoff, func() error {
		return manager.UpdateStocks(ctx)
	})
	if err != nil {
		appLogger.Warning("Initial instrument load failed: %v", err)
	}

	appLogger.Info("Running, press Ctrl+C to stop")
	<-ctx.Done()

	// 8. Shutdown in reverse order
	appLogger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	manager.Stop()
	if err := srv.Stop(shutdownCtx); err != nil {
		appLogger.Warning("API server shutdown: %v", err)
	}
	control.Stop(shutdownCtx)
	for _, closeFn := range closers {
		closeFn()
	}
	if db != nil {
		if err := db.Close(); err != nil {
			appLogger.Warning("Database close: %v", err)
		}
	}
	if err := trace.Shutdown(shutdownCtx); err != nil {
		appLogger.Warning("Tracing shutdown: %v", err)
	}
	appLogger.Info("Shutdown complete.")
}
