package supervisor

import (
	"context"

	"stocks-ngine/src/interfaces"
)

// Connections is the triple of broker sessions that is created, subscribed and
// disposed together. Day and minute candles go through Common, order books through
// Candle and trading status through InstrumentInfo.
type Connections struct {
	Common         interfaces.IBrokerConnection
	Candle         interfaces.IBrokerConnection
	InstrumentInfo interfaces.IBrokerConnection
}

func (c *Connections) all() []interfaces.IBrokerConnection {
	return []interfaces.IBrokerConnection{c.Common, c.Candle, c.InstrumentInfo}
}

// -----------------------------------------------------------------------------

// BrokerAction is one unit of outbound work. It receives the triple that is
// current when it runs and is executed at most once.
type BrokerAction struct {
	Action      func(ctx context.Context, conns *Connections) error
	Description string
}

// -----------------------------------------------------------------------------

// QueueBrokerAction appends an action to the outbound FIFO. It never blocks.
func (m *StocksManager) QueueBrokerAction(action func(ctx context.Context, conns *Connections) error, description string) {
	m.actions.Push(BrokerAction{Action: action, Description: description})
}
