package supervisor

import (
	"context"
	"fmt"
	"time"

	"stocks-ngine/src/analysis/core"
	"stocks-ngine/src/models"
	"stocks-ngine/src/utils"
)

// Day candles older than the start of today minus this are replays of past sessions.
const dayCandleTolerance = 3 * time.Hour

// A minute candle of a new date before this local hour is still the night session.
const rolloverHour = 3

// -----------------------------------------------------------------------------

func (m *StocksManager) processCandle(ctx context.Context, c models.MCandle) error {
	m.touchLastEvent()

	inst, ok := m.registry.Get(c.Figi)
	if !ok {
		return nil
	}

	switch c.Interval {
	case models.CandleIntervalDay:
		m.processDayCandle(ctx, inst, c)
	case models.CandleIntervalMinute:
		m.processMinuteCandle(ctx, inst, c)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (m *StocksManager) processDayCandle(ctx context.Context, inst *models.MInstrument, c models.MCandle) {
	now := m.Clock.Now()
	loc := m.location()

	inst.Lock()
	// 1. Stale replay
	cutoff := utils.StartOfDay(now.In(loc)).Add(-dayCandleTolerance)
	if utils.StartOfDay(c.Time.In(loc)).Before(cutoff) && !inst.LastUpdate.IsZero() {
		inst.Unlock()
		return
	}

	// 2. Today's session
	inst.TodayOpen = c.Open
	inst.TodayDate = c.Time.In(loc)
	inst.LastUpdate = now
	inst.Price = c.Close
	if inst.TodayOpen.IsPositive() {
		inst.DayChange = core.CalculateChangeRatio(inst.Price, inst.TodayOpen)
	}
	inst.DayVolume = c.Volume.Truncate(0)
	if inst.AvgDayVolumePerMonth.IsPositive() {
		inst.DayVolChgOfAvg = core.CalculateVolumeRatio(inst.DayVolume, inst.AvgDayVolumePerMonth)
	}
	figi, ticker := inst.Figi, inst.Ticker
	inst.Unlock()

	m.notify(ctx, inst)

	// 3. Minute candles follow the first day candle
	if m.minuteSubscribed.Add(figi) {
		m.QueueBrokerAction(func(ctx context.Context, conns *Connections) error {
			return conns.Common.SendStreamingRequest(ctx, models.SubscribeCandle(figi, models.CandleIntervalMinute))
		}, fmt.Sprintf("subscribe minute candle %s (%s)", ticker, figi))
	}
}

// -----------------------------------------------------------------------------

func (m *StocksManager) processMinuteCandle(ctx context.Context, inst *models.MInstrument, c models.MCandle) {
	now := m.Clock.Now()
	loc := m.location()
	local := c.Time.In(loc)

	inst.Lock()
	// 1. A minute of a later date means the stream moved to a new session
	if !inst.TodayDate.IsZero() &&
		utils.StartOfDay(local).After(utils.StartOfDay(inst.TodayDate.In(loc))) &&
		local.Hour() > rolloverHour &&
		inst.MinuteCandles.Size() > 1 {
		reason := fmt.Sprintf("new day (%s %s -> %s)",
			inst.Ticker, inst.TodayDate.Format("2006-01-02"), local.Format("2006-01-02"))
		inst.Unlock()
		m.ResetConnection(ctx, reason)
		return
	}

	// 2. Regular minute
	inst.MinuteCandles.Append(c)
	inst.LastUpdate = now
	inst.Unlock()

	m.notify(ctx, inst)
}
