package core

import (
	"stocks-ngine/src/models"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// OHLCV is the fold of a candle series.
type OHLCV struct {
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// -----------------------------------------------------------------------------

// ComputeOHLCV folds candles in order: first open, max high, min low, last close, summed volume.
func ComputeOHLCV(candles []models.MCandle) OHLCV {
	if len(candles) == 0 {
		return OHLCV{}
	}

	out := OHLCV{
		Open:  candles[0].Open,
		High:  candles[0].High,
		Low:   candles[0].Low,
		Close: candles[len(candles)-1].Close,
	}

	for _, c := range candles {
		if c.High.GreaterThan(out.High) {
			out.High = c.High
		}
		if c.Low.LessThan(out.Low) {
			out.Low = c.Low
		}
		out.Volume = out.Volume.Add(c.Volume)
	}

	return out
}

// -----------------------------------------------------------------------------

// MidPrice returns (high + low) / 2.
func MidPrice(high, low decimal.Decimal) decimal.Decimal {
	return high.Add(low).Div(two)
}

// -----------------------------------------------------------------------------

// CalculateChangeRatio calculates the change ratio of current against previous.
func CalculateChangeRatio(current, previous decimal.Decimal) decimal.Decimal {
	if !previous.IsPositive() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous)
}

// -----------------------------------------------------------------------------

// CalculateVolumeRatio computes today's volume relative to the average day volume.
// Returns zero while the average is unknown.
func CalculateVolumeRatio(currentVol, avgVol decimal.Decimal) decimal.Decimal {
	if !avgVol.IsPositive() {
		return decimal.Zero
	}
	return currentVol.Div(avgVol)
}

// -----------------------------------------------------------------------------

// VolumeCost returns volume * price * lot.
func VolumeCost(volume, price decimal.Decimal, lot int64) decimal.Decimal {
	return volume.Mul(price).Mul(decimal.NewFromInt(lot))
}
