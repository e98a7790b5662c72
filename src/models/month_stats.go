package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MMonthStats holds the trailing-month aggregates of one instrument.
type MMonthStats struct {
	Figi                     string          `json:"figi"`
	MonthOpen                decimal.Decimal `json:"month_open"`
	MonthHigh                decimal.Decimal `json:"month_high"`
	MonthLow                 decimal.Decimal `json:"month_low"`
	MonthVolume              decimal.Decimal `json:"month_volume"`
	MonthVolumeCost          decimal.Decimal `json:"month_volume_cost"`
	AvgDayVolumePerMonth     decimal.Decimal `json:"avg_day_volume_per_month"`
	AvgDayPricePerMonth      decimal.Decimal `json:"avg_day_price_per_month"`
	AvgDayVolumePerMonthCost decimal.Decimal `json:"avg_day_volume_per_month_cost"`
	YesterdayVolume          decimal.Decimal `json:"yesterday_volume"`
	YesterdayAvgPrice        decimal.Decimal `json:"yesterday_avg_price"`
	YesterdayVolumeCost      decimal.Decimal `json:"yesterday_volume_cost"`
	CandleCount              int             `json:"candle_count"`
	UpdatedAt                time.Time       `json:"updated_at"`
}
