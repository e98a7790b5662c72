package analysis

import (
	"time"

	"stocks-ngine/src/analysis/core"
	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"

	"github.com/shopspring/decimal"
)

// MonthStatsAnalyzer turns a trailing month of daily candles into instrument aggregates.
type MonthStatsAnalyzer struct {
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewMonthStatsAnalyzer(log *logger.Logger) *MonthStatsAnalyzer {
	return &MonthStatsAnalyzer{Logger: log}
}

// -----------------------------------------------------------------------------

// ComputeMonthStats folds daily candles (oldest first) for an instrument traded in
// lots of `lot`. Returns false when there is nothing to fold.
func (a *MonthStatsAnalyzer) ComputeMonthStats(figi string, candles []models.MCandle, lot int64, now time.Time) (models.MMonthStats, bool) {
	if len(candles) == 0 {
		return models.MMonthStats{}, false
	}
	if lot <= 0 {
		lot = 1
	}

	// 1. Month range and volume
	ohlcv := core.ComputeOHLCV(candles)

	// 2. Average of the daily midpoints
	mids := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		mids[i] = core.MidPrice(c.High, c.Low)
	}
	avgDayPrice := core.CalculateMean(mids)

	// 3. Derived costs; the average volume is rounded half-to-even but the cost uses the exact value
	count := decimal.NewFromInt(int64(len(candles)))
	avgDayVolume := ohlcv.Volume.Div(count)
	monthAvgPrice := core.MidPrice(ohlcv.High, ohlcv.Low)

	// 4. The newest candle stands for the previous session
	last := candles[len(candles)-1]
	yesterdayAvgPrice := core.MidPrice(last.High, last.Low)

	stats := models.MMonthStats{
		Figi:                     figi,
		MonthOpen:                ohlcv.Open,
		MonthHigh:                ohlcv.High,
		MonthLow:                 ohlcv.Low,
		MonthVolume:              ohlcv.Volume,
		MonthVolumeCost:          core.VolumeCost(ohlcv.Volume, monthAvgPrice, lot),
		AvgDayVolumePerMonth:     avgDayVolume.RoundBank(0),
		AvgDayPricePerMonth:      avgDayPrice,
		AvgDayVolumePerMonthCost: core.VolumeCost(avgDayVolume, avgDayPrice, lot),
		YesterdayVolume:          last.Volume,
		YesterdayAvgPrice:        yesterdayAvgPrice,
		YesterdayVolumeCost:      core.VolumeCost(last.Volume, yesterdayAvgPrice, lot),
		CandleCount:              len(candles),
		UpdatedAt:                now,
	}

	if a.Logger != nil {
		a.Logger.Debug("Month stats for %s: %d candles, high %s, low %s, avg volume %s",
			figi, len(candles), stats.MonthHigh, stats.MonthLow, stats.AvgDayVolumePerMonth)
	}
	return stats, true
}
