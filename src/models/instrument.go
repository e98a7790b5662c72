package models

import (
	"sync"
	"time"

	"stocks-ngine/src/utils"

	"github.com/shopspring/decimal"
)

// DefaultMonthStatsTTL is how long monthly aggregates stay fresh.
const DefaultMonthStatsTTL = 24 * time.Hour

// StatusNotAvailableForTrading is the trade status of a halted instrument.
const StatusNotAvailableForTrading = "not_available_for_trading"

// -----------------------------------------------------------------------------

// MMarketInstrument describes an instrument as listed by the broker.
type MMarketInstrument struct {
	Figi              string          `json:"figi"`
	Ticker            string          `json:"ticker"`
	Isin              string          `json:"isin"`
	Name              string          `json:"name"`
	Currency          string          `json:"currency"`
	Type              string          `json:"type"`
	Lot               int64           `json:"lot"`
	MinPriceIncrement decimal.Decimal `json:"minPriceIncrement"`
}

// -----------------------------------------------------------------------------

// MInstrument is the live state of one instrument.
// Identity fields never change after creation; every other exported field is guarded
// by the embedded mutex. Methods lock on their own, so call them without holding it.
type MInstrument struct {
	sync.RWMutex

	Figi              string
	Ticker            string
	Isin              string
	Name              string
	Currency          string
	Lot               int64
	MinPriceIncrement decimal.Decimal

	Price          decimal.Decimal
	TodayOpen      decimal.Decimal
	TodayDate      time.Time
	DayChange      decimal.Decimal
	DayVolume      decimal.Decimal
	DayVolChgOfAvg decimal.Decimal
	Status         string
	BestBid        decimal.Decimal
	BestAsk        decimal.Decimal

	LastUpdate          time.Time
	LastMonthDataUpdate time.Time
	MonthStatsTTL       time.Duration

	MonthOpen                decimal.Decimal
	MonthHigh                decimal.Decimal
	MonthLow                 decimal.Decimal
	MonthVolume              decimal.Decimal
	MonthVolumeCost          decimal.Decimal
	AvgDayVolumePerMonth     decimal.Decimal
	AvgDayPricePerMonth      decimal.Decimal
	AvgDayVolumePerMonthCost decimal.Decimal
	YesterdayVolume          decimal.Decimal
	YesterdayAvgPrice        decimal.Decimal
	YesterdayVolumeCost      decimal.Decimal

	MinuteCandles *utils.RingBuffer[MCandle]

	candles    []MCandle
	candleKeys map[candleKey]struct{}
}

// -----------------------------------------------------------------------------

// NewInstrument creates the state record for a listed instrument.
func NewInstrument(desc MMarketInstrument, minuteCapacity int) *MInstrument {
	lot := desc.Lot
	if lot <= 0 {
		lot = 1
	}
	return &MInstrument{
		Figi:              desc.Figi,
		Ticker:            desc.Ticker,
		Isin:              desc.Isin,
		Name:              desc.Name,
		Currency:          desc.Currency,
		Lot:               lot,
		MinPriceIncrement: desc.MinPriceIncrement,
		MonthStatsTTL:     DefaultMonthStatsTTL,
		MinuteCandles:     utils.NewRingBuffer[MCandle](minuteCapacity),
		candleKeys:        make(map[candleKey]struct{}),
	}
}

// -----------------------------------------------------------------------------

// MonthStatsExpiredAt reports whether the monthly aggregates are stale at `now`.
func (i *MInstrument) MonthStatsExpiredAt(now time.Time) bool {
	i.RLock()
	defer i.RUnlock()
	return i.monthStatsExpiredLocked(now)
}

// MonthStatsExpired reports staleness against the wall clock.
func (i *MInstrument) MonthStatsExpired() bool {
	return i.MonthStatsExpiredAt(time.Now())
}

func (i *MInstrument) monthStatsExpiredLocked(now time.Time) bool {
	ttl := i.MonthStatsTTL
	if ttl <= 0 {
		ttl = DefaultMonthStatsTTL
	}
	return now.Sub(i.LastMonthDataUpdate) > ttl
}

// -----------------------------------------------------------------------------

// AddCandle appends a candle to the history unless one with the same time and
// interval is already stored. Returns false for duplicates.
func (i *MInstrument) AddCandle(c MCandle) bool {
	i.Lock()
	defer i.Unlock()

	if i.candleKeys == nil {
		i.candleKeys = make(map[candleKey]struct{})
	}
	key := keyOf(c)
	if _, exists := i.candleKeys[key]; exists {
		return false
	}
	i.candleKeys[key] = struct{}{}
	i.candles = append(i.candles, c)
	return true
}

// -----------------------------------------------------------------------------

// Candles returns a copy of the stored candle history.
func (i *MInstrument) Candles() []MCandle {
	i.RLock()
	defer i.RUnlock()
	out := make([]MCandle, len(i.candles))
	copy(out, i.candles)
	return out
}

// -----------------------------------------------------------------------------

// PruneCandles drops history older than `before`.
func (i *MInstrument) PruneCandles(before time.Time) int {
	i.Lock()
	defer i.Unlock()

	kept := i.candles[:0]
	removed := 0
	for _, c := range i.candles {
		if c.Time.Before(before) {
			delete(i.candleKeys, keyOf(c))
			removed++
			continue
		}
		kept = append(kept, c)
	}
	i.candles = kept
	return removed
}

// -----------------------------------------------------------------------------

// ApplyMonthStats stores freshly computed monthly aggregates and stamps the refresh time.
func (i *MInstrument) ApplyMonthStats(s MMonthStats, now time.Time) {
	i.Lock()
	defer i.Unlock()

	i.MonthOpen = s.MonthOpen
	i.MonthHigh = s.MonthHigh
	i.MonthLow = s.MonthLow
	i.MonthVolume = s.MonthVolume
	i.MonthVolumeCost = s.MonthVolumeCost
	i.AvgDayVolumePerMonth = s.AvgDayVolumePerMonth
	i.AvgDayPricePerMonth = s.AvgDayPricePerMonth
	i.AvgDayVolumePerMonthCost = s.AvgDayVolumePerMonthCost
	i.YesterdayAvgPrice = s.YesterdayAvgPrice
	i.YesterdayVolume = s.YesterdayVolume
	i.YesterdayVolumeCost = s.YesterdayVolumeCost
	if i.AvgDayVolumePerMonth.IsPositive() {
		i.DayVolChgOfAvg = i.DayVolume.Div(i.AvgDayVolumePerMonth)
	}
	i.LastMonthDataUpdate = now
}

// -----------------------------------------------------------------------------

// Snapshot copies the instrument into a lock-free value for serialization.
func (i *MInstrument) Snapshot() MInstrumentSnapshot {
	i.RLock()
	defer i.RUnlock()

	minuteCount := 0
	if i.MinuteCandles != nil {
		minuteCount = i.MinuteCandles.Size()
	}

	return MInstrumentSnapshot{
		Figi:                     i.Figi,
		Ticker:                   i.Ticker,
		Isin:                     i.Isin,
		Name:                     i.Name,
		Currency:                 i.Currency,
		Lot:                      i.Lot,
		Price:                    i.Price,
		TodayOpen:                i.TodayOpen,
		TodayDate:                i.TodayDate,
		DayChange:                i.DayChange,
		DayVolume:                i.DayVolume,
		DayVolChgOfAvg:           i.DayVolChgOfAvg,
		Status:                   i.Status,
		BestBid:                  i.BestBid,
		BestAsk:                  i.BestAsk,
		LastUpdate:               i.LastUpdate,
		LastMonthDataUpdate:      i.LastMonthDataUpdate,
		MonthStatsExpired:        i.monthStatsExpiredLocked(time.Now()),
		MonthOpen:                i.MonthOpen,
		MonthHigh:                i.MonthHigh,
		MonthLow:                 i.MonthLow,
		MonthVolume:              i.MonthVolume,
		MonthVolumeCost:          i.MonthVolumeCost,
		AvgDayVolumePerMonth:     i.AvgDayVolumePerMonth,
		AvgDayPricePerMonth:      i.AvgDayPricePerMonth,
		AvgDayVolumePerMonthCost: i.AvgDayVolumePerMonthCost,
		YesterdayVolume:          i.YesterdayVolume,
		YesterdayAvgPrice:        i.YesterdayAvgPrice,
		YesterdayVolumeCost:      i.YesterdayVolumeCost,
		CandleCount:              len(i.candles),
		MinuteCandleCount:        minuteCount,
	}
}

// -----------------------------------------------------------------------------

// MInstrumentSnapshot is the serialized view of an instrument.
type MInstrumentSnapshot struct {
	Figi                     string          `json:"figi"`
	Ticker                   string          `json:"ticker"`
	Isin                     string          `json:"isin"`
	Name                     string          `json:"name"`
	Currency                 string          `json:"currency"`
	Lot                      int64           `json:"lot"`
	Price                    decimal.Decimal `json:"price"`
	TodayOpen                decimal.Decimal `json:"today_open"`
	TodayDate                time.Time       `json:"today_date"`
	DayChange                decimal.Decimal `json:"day_change"`
	DayVolume                decimal.Decimal `json:"day_volume"`
	DayVolChgOfAvg           decimal.Decimal `json:"day_vol_chg_of_avg"`
	Status                   string          `json:"status"`
	BestBid                  decimal.Decimal `json:"best_bid"`
	BestAsk                  decimal.Decimal `json:"best_ask"`
	LastUpdate               time.Time       `json:"last_update"`
	LastMonthDataUpdate      time.Time       `json:"last_month_data_update"`
	MonthStatsExpired        bool            `json:"month_stats_expired"`
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
	MinuteCandleCount        int             `json:"minute_candle_count"`
}

// -----------------------------------------------------------------------------

// MarkMonthDataUpdated stamps a completed history fetch that produced no aggregates.
func (i *MInstrument) MarkMonthDataUpdated(now time.Time) {
	i.Lock()
	defer i.Unlock()
	i.LastMonthDataUpdate = now
}
