package supervisor

import (
	"context"
	"fmt"

	"stocks-ngine/src/models"
)

// -----------------------------------------------------------------------------

// UpdatePrices subscribes every registered instrument that is not subscribed yet:
// day candles and the order book first, then trading status in paced batches.
func (m *StocksManager) UpdatePrices(ctx context.Context) error {
	// 1. Candles and order books
	var fresh []*models.MInstrument
	for _, inst := range m.registry.Instruments() {
		if !m.daySubscribed.Add(inst.Figi) {
			continue
		}
		figi, ticker := inst.Figi, inst.Ticker
		depth := m.t.orderbookDepth

		m.QueueBrokerAction(func(ctx context.Context, conns *Connections) error {
			return conns.Common.SendStreamingRequest(ctx, models.SubscribeCandle(figi, models.CandleIntervalDay))
		}, fmt.Sprintf("subscribe day candle %s (%s)", ticker, figi))

		m.QueueBrokerAction(func(ctx context.Context, conns *Connections) error {
			return conns.Candle.SendStreamingRequest(ctx, models.SubscribeOrderbook(figi, depth))
		}, fmt.Sprintf("subscribe orderbook %s (%s)", ticker, figi))

		fresh = append(fresh, inst)
	}

	// 2. Trading status, pausing after every batch
	for n, inst := range fresh {
		figi, ticker := inst.Figi, inst.Ticker
		m.QueueBrokerAction(func(ctx context.Context, conns *Connections) error {
			return conns.InstrumentInfo.SendStreamingRequest(ctx, models.SubscribeInstrumentInfo(figi))
		}, fmt.Sprintf("subscribe status %s (%s)", ticker, figi))

		if (n+1)%m.t.subscriptionBatch == 0 {
			if err := m.Sleep(ctx, m.t.subscriptionPause); err != nil {
				return err
			}
		}
	}

	if len(fresh) > 0 {
		m.Logger.Info("Queued subscriptions for %d instruments", len(fresh))
	}
	return nil
}

// -----------------------------------------------------------------------------

// UpdateStocks loads the instrument universe, registers unknown instruments and
// subscribes them.
func (m *StocksManager) UpdateStocks(ctx context.Context) error {
	conns := m.conns.Load()
	if conns == nil {
		return nil
	}

	// 1. Universe
	stocks, err := conns.Common.MarketStocks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load market stocks: %w", err)
	}

	// 2. Unknown instruments only
	seen := make(map[string]struct{}, len(stocks))
	var toAdd []*models.MInstrument
	for _, desc := range stocks {
		if _, dup := seen[desc.Figi]; dup || desc.Figi == "" {
			continue
		}
		seen[desc.Figi] = struct{}{}
		if _, known := m.registry.Get(desc.Figi); !known {
			toAdd = append(toAdd, m.registry.CreateInstrument(desc))
		}
	}

	if err := m.registry.AddInstruments(ctx, toAdd); err != nil {
		m.Logger.Warning("Adding %d instruments reported: %v", len(toAdd), err)
	}

	// 3. Subscribe
	return m.UpdatePrices(ctx)
}
