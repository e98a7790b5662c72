package utils

// -----------------------------------------------------------------------------

// Retention constants for per-instrument candle logs.
// A main session plus the evening session is at most ~16 hours of minute candles.
const (
	MinutesPerTradingDay        = 16 * 60
	DefaultMinuteCandleCapacity = MinutesPerTradingDay
	DefaultRetentionDays        = 32
)
