package interfaces

import "context"

// -----------------------------------------------------------------------------
// IDataExchanger is a push surface for external systems (server, gRPC).
// It receives status messages and instrument updates.
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	IStatusPublisher
	IUpdateNotifier

	// -----------------------------------------------------------------------------
	// Start serves until Stop is called
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop(ctx context.Context) error
}
