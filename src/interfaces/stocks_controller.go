package interfaces

import (
	"context"

	"stocks-ngine/src/models"
)

// -----------------------------------------------------------------------------
// IStocksController is the control surface the supervisor exposes to servers.
// -----------------------------------------------------------------------------

type IStocksController interface {
	ResetConnection(ctx context.Context, reason string)
	CheckMonthStats(ctx context.Context, instrument *models.MInstrument) bool
	Orderbook(ticker string) (models.MOrderbook, bool)
}
