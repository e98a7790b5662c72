package supervisor

import "stocks-ngine/src/models"

// -----------------------------------------------------------------------------

// applyOrderbook stores the book and the best quotes. One-sided books are ignored.
func (m *StocksManager) applyOrderbook(e models.MOrderbookEvent) *models.MInstrument {
	inst, ok := m.registry.Get(e.Figi)
	if !ok || len(e.Bids) == 0 || len(e.Asks) == 0 {
		return nil
	}

	bids := models.FilterLevels(e.Bids)
	asks := models.FilterLevels(e.Asks)

	m.orderbooksMu.Lock()
	m.orderbooks[inst.Ticker] = models.MOrderbook{
		Depth:  e.Depth,
		Bids:   bids,
		Asks:   asks,
		Figi:   e.Figi,
		Ticker: inst.Ticker,
		Isin:   inst.Isin,
	}
	m.orderbooksMu.Unlock()

	inst.Lock()
	if len(bids) > 0 {
		inst.BestBid = bids[0].Price
	}
	if len(asks) > 0 {
		inst.BestAsk = asks[0].Price
	}
	inst.Unlock()

	return inst
}

// -----------------------------------------------------------------------------

// Orderbook returns the latest book of a ticker.
func (m *StocksManager) Orderbook(ticker string) (models.MOrderbook, bool) {
	m.orderbooksMu.RLock()
	defer m.orderbooksMu.RUnlock()
	book, ok := m.orderbooks[ticker]
	return book, ok
}
