package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CandleInterval is the bucket width of a candle as the broker names it.
type CandleInterval string

const (
	CandleIntervalMinute CandleInterval = "1min"
	CandleIntervalDay    CandleInterval = "day"
)

// MCandle is one OHLCV bucket for an instrument.
type MCandle struct {
	Figi     string          `json:"figi"`
	Time     time.Time       `json:"time"`
	Interval CandleInterval  `json:"interval"`
	Open     decimal.Decimal `json:"o"`
	Close    decimal.Decimal `json:"c"`
	High     decimal.Decimal `json:"h"`
	Low      decimal.Decimal `json:"l"`
	Volume   decimal.Decimal `json:"v"`
}

// Midpoint returns (high + low) / 2.
func (c MCandle) Midpoint() decimal.Decimal {
	return c.High.Add(c.Low).Div(decimal.NewFromInt(2))
}

type candleKey struct {
	unixNano int64
	interval CandleInterval
}

func keyOf(c MCandle) candleKey {
	return candleKey{unixNano: c.Time.UnixNano(), interval: c.Interval}
}
