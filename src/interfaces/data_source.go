package interfaces

import (
	"context"
	"time"

	"stocks-ngine/src/models"
)

// -----------------------------------------------------------------------------
// IBrokerConnection is one authenticated broker session: a streaming channel
// for subscriptions plus the REST calls needed by the supervisor.
// -----------------------------------------------------------------------------

type IBrokerConnection interface {

	// SendStreamingRequest issues a subscribe command on the streaming channel.
	// The channel is opened lazily on the first request.
	SendStreamingRequest(ctx context.Context, req models.MStreamingRequest) error

	// -----------------------------------------------------------------------------

	// MarketCandles returns candles of one instrument in [from, to).
	MarketCandles(ctx context.Context, figi string, from, to time.Time, interval models.CandleInterval) ([]models.MCandle, error)

	// -----------------------------------------------------------------------------

	// MarketStocks lists the tradable stock universe.
	MarketStocks(ctx context.Context) ([]models.MMarketInstrument, error)

	// -----------------------------------------------------------------------------

	// SetEventHandler registers the callback for streaming events; nil unregisters.
	// The handler runs on the connection's read goroutine and must not block.
	SetEventHandler(handler func(models.MStreamEvent))

	// -----------------------------------------------------------------------------

	// Close disposes the connection. Safe to call more than once.
	Close() error
}

// -----------------------------------------------------------------------------
// IConnectionFactory opens broker connections for a credential.
// -----------------------------------------------------------------------------

type IConnectionFactory interface {
	NewConnection(token string) IBrokerConnection
}
