package models

import "github.com/shopspring/decimal"

// MOrderbookLevel is a single price level of an order book side.
type MOrderbookLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// MOrderbook is the latest order book snapshot of an instrument, keyed by ticker.
type MOrderbook struct {
	Depth  int               `json:"depth"`
	Bids   []MOrderbookLevel `json:"bids"`
	Asks   []MOrderbookLevel `json:"asks"`
	Figi   string            `json:"figi"`
	Ticker string            `json:"ticker"`
	Isin   string            `json:"isin"`
}

// FilterLevels keeps only the levels with a quantity of at least one lot.
func FilterLevels(levels []MOrderbookLevel) []MOrderbookLevel {
	out := make([]MOrderbookLevel, 0, len(levels))
	for _, l := range levels {
		if l.Quantity.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			out = append(out, l)
		}
	}
	return out
}
