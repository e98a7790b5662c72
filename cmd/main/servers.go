package main

import (
	"stocks-ngine/src/grpc_control"
	"stocks-ngine/src/interfaces"
	"stocks-ngine/src/logger"
)

// -----------------------------------------------------------------------------

// startServers runs the HTTP/websocket server and the gRPC health server.
func startServers(srv interfaces.IDataExchanger, control *grpc_control.ControlService, appLogger *logger.Logger) {
	// 1. API server
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	// 2. gRPC health
	go func() {
		if err := control.Start(); err != nil {
			appLogger.Error("gRPC server failed: %v", err)
		}
	}()
}
