package supervisor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stocks-ngine/src/models"
	"stocks-ngine/src/trace"
	"stocks-ngine/src/utils"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// -----------------------------------------------------------------------------

func (m *StocksManager) startStatsLoop() {
	rs := m.run.Load()
	if rs == nil || !m.statsRunning.CompareAndSwap(false, true) {
		return
	}
	rs.group.Go(func() error {
		m.monthStatsLoop(rs.ctx)
		return nil
	})
}

// -----------------------------------------------------------------------------

// monthStatsLoop backfills one instrument at a time and periodically queues the
// most volatile stale instruments.
func (m *StocksManager) monthStatsLoop(ctx context.Context) {
	lastBatch := m.Clock.Now()

	for ctx.Err() == nil {
		// 1. One instrument from the queue
		if inst, ok := m.statsQueue.TryPop(); ok {
			if m.safeGetMonthStats(ctx, inst) {
				m.reportStatsProgress(ctx)
			} else {
				if m.Sleep(ctx, m.t.retryDelay) != nil {
					return
				}
				m.enqueueIfExpired(inst)
			}
		}

		// 2. Periodic rescan
		if now := m.Clock.Now(); now.Sub(lastBatch) > m.t.rescanInterval {
			m.rescanStale()
			m.pruneHistory(now)
			lastBatch = now
		}

		if m.statsQueue.Len() == 0 {
			if utils.SleepContext(ctx, idleDelay) != nil {
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------

// safeGetMonthStats treats a panic during the backfill as a failed fetch.
func (m *StocksManager) safeGetMonthStats(ctx context.Context, inst *models.MInstrument) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logError(fmt.Sprintf("Month stats of %s panicked: %v", inst.Ticker, r))
			ok = false
		}
	}()
	return m.getMonthStats(ctx, inst)
}

// -----------------------------------------------------------------------------

// getMonthStats fetches one month of day candles and applies the aggregates.
// Returns false when the fetch failed or produced nothing.
func (m *StocksManager) getMonthStats(ctx context.Context, inst *models.MInstrument) bool {
	if !inst.MonthStatsExpiredAt(m.Clock.Now()) {
		return true
	}

	conns := m.conns.Load()
	if conns == nil {
		return false
	}
	m.apiCalls.Add(1)

	// 1. Fetch
	day := utils.StartOfDay(m.Clock.Now().In(m.location()))
	spanCtx, span := trace.StartSpan(ctx, "month_stats.fetch",
		oteltrace.WithAttributes(attribute.String("figi", inst.Figi)))
	candles, err := conns.Common.MarketCandles(spanCtx, inst.Figi, day.AddDate(0, -1, 0), day.AddDate(0, 0, 1), models.CandleIntervalDay)
	trace.EndSpan(span, err)
	if err != nil {
		m.Logger.Warning("Month history for %s failed: %v", inst.Ticker, err)
		return false
	}

	// 2. Stamp before the empty check so an empty history is not refetched at once
	now := m.Clock.Now()
	inst.MarkMonthDataUpdated(now)

	stats, ok := m.Analyzer.ComputeMonthStats(inst.Figi, candles, inst.Lot, now)
	if !ok {
		return false
	}

	// 3. Apply
	added := make([]models.MCandle, 0, len(candles))
	for _, c := range candles {
		if inst.AddCandle(c) {
			added = append(added, c)
		}
	}
	inst.ApplyMonthStats(stats, now)

	// 4. Persist
	if m.store != nil {
		if err := m.store.SaveCandlesBulk(added); err != nil {
			m.Logger.Warning("Failed to store candles of %s: %v", inst.Ticker, err)
		}
		if err := m.store.SaveMonthStats(stats); err != nil {
			m.Logger.Warning("Failed to store month stats of %s: %v", inst.Ticker, err)
		}
	}
	return true
}

// -----------------------------------------------------------------------------

// CheckMonthStats queues a stale instrument and waits until its aggregates are
// fresh. Returns false if ctx ends first.
func (m *StocksManager) CheckMonthStats(ctx context.Context, inst *models.MInstrument) bool {
	if !inst.MonthStatsExpiredAt(m.Clock.Now()) {
		return true
	}

	m.enqueueIfExpired(inst)
	for inst.MonthStatsExpiredAt(m.Clock.Now()) {
		if utils.SleepContext(ctx, statsPollPeriod) != nil {
			return false
		}
	}
	return ctx.Err() == nil
}

// -----------------------------------------------------------------------------

// enqueueIfExpired is an atomic test-and-insert on the stats queue.
func (m *StocksManager) enqueueIfExpired(inst *models.MInstrument) bool {
	return m.statsQueue.PushIf(inst.Figi, inst, func() bool {
		return inst.MonthStatsExpiredAt(m.Clock.Now())
	})
}

// -----------------------------------------------------------------------------

// rescanStale queues the stale priced instruments with the largest absolute day change.
func (m *StocksManager) rescanStale() int {
	type candidate struct {
		inst   *models.MInstrument
		change decimal.Decimal
	}

	now := m.Clock.Now()
	var candidates []candidate
	for _, inst := range m.registry.Instruments() {
		if m.statsQueue.Contains(inst.Figi) || !inst.MonthStatsExpiredAt(now) {
			continue
		}
		inst.RLock()
		priced, change := inst.Price.IsPositive(), inst.DayChange.Abs()
		inst.RUnlock()
		if priced {
			candidates = append(candidates, candidate{inst: inst, change: change})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].change.GreaterThan(candidates[j].change)
	})
	if len(candidates) > m.t.rescanBatch {
		candidates = candidates[:m.t.rescanBatch]
	}

	queued := 0
	for _, c := range candidates {
		if m.enqueueIfExpired(c.inst) {
			queued++
		}
	}
	if queued > 0 {
		m.Logger.Debug("Queued %d stale instruments for month stats", queued)
	}
	return queued
}

// -----------------------------------------------------------------------------

func (m *StocksManager) reportStatsProgress(ctx context.Context) {
	now := m.Clock.Now()
	total, completed := 0, 0
	for _, inst := range m.registry.Instruments() {
		inst.RLock()
		priced := inst.Price.IsPositive()
		inst.RUnlock()
		if !priced {
			continue
		}
		total++
		if !inst.MonthStatsExpiredAt(now) {
			completed++
		}
	}

	m.publish(ctx, models.MStatsUpdateMessage{
		Completed:    completed,
		Total:        total,
		IsComplete:   completed == total,
		APICallCount: m.apiCalls.Load(),
		Timestamp:    now,
	})
}

// -----------------------------------------------------------------------------

// pruneHistory drops day candles older than the retention window.
func (m *StocksManager) pruneHistory(now time.Time) {
	cutoff := now.Add(-m.t.retention)
	removed := 0
	for _, inst := range m.registry.Instruments() {
		removed += inst.PruneCandles(cutoff)
	}
	if removed > 0 {
		m.Logger.Debug("Pruned %d candles older than %s", removed, cutoff.Format("2006-01-02"))
	}

	if m.store != nil {
		if err := m.store.CleanupOldData(cutoff); err != nil {
			m.Logger.Warning("Failed to clean up stored candles: %v", err)
		}
	}
}
