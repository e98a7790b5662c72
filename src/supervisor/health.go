package supervisor

import (
	"context"
	"fmt"
	"time"

	"stocks-ngine/src/models"
)

type healthAction int

const (
	healthOK healthAction = iota
	healthQuiet
	healthReset
)

type healthVerdict struct {
	action healthAction
	reason string
}

// -----------------------------------------------------------------------------

// evaluateHealth decides whether the stream looks dead. Silence is tolerated
// during the quiet window, on holidays and on exchange days off.
func (m *StocksManager) evaluateHealth(ctx context.Context) healthVerdict {
	if m.resetting.Load() {
		return healthVerdict{action: healthOK}
	}

	now := m.Clock.Now()
	lastRestart := m.lastRestart.Load()
	if lastRestart == 0 || now.Sub(time.Unix(0, lastRestart)) <= m.t.gracePeriod {
		return healthVerdict{action: healthOK}
	}

	// 1. Silence on every connection
	if last := m.lastEvent.Load(); last != 0 && now.Sub(time.Unix(0, last)) > m.t.inactivity {
		if m.isQuietPeriod(now) {
			return healthVerdict{action: healthQuiet}
		}
		return healthVerdict{
			action: healthReset,
			reason: fmt.Sprintf("no data for more than %s", m.t.inactivity),
		}
	}

	// 2. Update cadence
	recent, lastSecond := 0, 0
	for _, inst := range m.registry.Instruments() {
		inst.RLock()
		age := now.Sub(inst.LastUpdate)
		inst.RUnlock()

		if age <= m.t.inactivity {
			recent++
		}
		if age <= time.Second {
			lastSecond++
		}
	}
	m.publish(ctx, models.MCommonInfoMessage{
		TotalStocksUpdatedInFiveSec: recent,
		TotalStocksUpdatedInLastSec: lastSecond,
		Timestamp:                   now,
	})

	// 3. Most instruments went stale
	if recent < m.t.minUpdated && !m.isQuietPeriod(now) {
		return healthVerdict{
			action: healthReset,
			reason: fmt.Sprintf("only %d instruments updated in the last %s", recent, m.t.inactivity),
		}
	}
	return healthVerdict{action: healthOK}
}

// -----------------------------------------------------------------------------

func (m *StocksManager) isQuietPeriod(now time.Time) bool {
	if m.Scheduler != nil && (m.Scheduler.IsTradeStoppedTime(now) || m.Scheduler.IsExchangeDayOff(now)) {
		return true
	}
	return m.IsHolidays()
}

// -----------------------------------------------------------------------------

// IsHolidays guesses a market holiday: fewer than a quarter of the priced
// instruments report a tradable status.
func (m *StocksManager) IsHolidays() bool {
	tradable, priced := 0, 0
	for _, inst := range m.registry.Instruments() {
		inst.RLock()
		if inst.Status != "" && inst.Status != models.StatusNotAvailableForTrading {
			tradable++
		}
		if inst.Price.IsPositive() {
			priced++
		}
		inst.RUnlock()
	}
	return tradable < priced/4
}
