package utils

import (
	"fmt"
	"strings"
	"time"

	"stocks-ngine/src/logger"
)

// MarketScheduler decides when silence on the stream is expected: inside the
// daily quiet window or on an exchange day off.
type MarketScheduler struct {
	Calendar   *TradingCalendar // nil disables the exchange day-off check
	Location   *time.Location
	QuietStart int // minutes after local midnight, inclusive
	QuietEnd   int // minutes after local midnight, exclusive
	Logger     *logger.Logger
}

// -----------------------------------------------------------------------------

// NewMarketScheduler builds a scheduler from config strings.
// quietStart/quietEnd use "HH:MM"; an empty mic disables the calendar.
func NewMarketScheduler(mic, timezone, quietStart, quietEnd string, l *logger.Logger) (*MarketScheduler, error) {
	loc := time.Local
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("failed to load timezone '%s': %w", timezone, err)
		}
	}

	start, err := parseClock(quietStart)
	if err != nil {
		return nil, fmt.Errorf("invalid quiet window start: %w", err)
	}
	end, err := parseClock(quietEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid quiet window end: %w", err)
	}

	ms := &MarketScheduler{
		Location:   loc,
		QuietStart: start,
		QuietEnd:   end,
		Logger:     l,
	}
	if mic != "" {
		ms.Calendar = GetCalendar(mic, l)
	}

	if l != nil {
		l.Info("MarketScheduler: quiet window %s-%s (%s), exchange calendar %q",
			quietStart, quietEnd, loc, mic)
	}
	return ms, nil
}

// -----------------------------------------------------------------------------

// IsTradeStoppedTime reports whether t falls inside the daily quiet window.
func (ms *MarketScheduler) IsTradeStoppedTime(t time.Time) bool {
	local := t.In(ms.location())
	minute := local.Hour()*60 + local.Minute()

	if ms.QuietStart == ms.QuietEnd {
		return false
	}
	if ms.QuietStart < ms.QuietEnd {
		return minute >= ms.QuietStart && minute < ms.QuietEnd
	}
	// Window wraps past midnight
	return minute >= ms.QuietStart || minute < ms.QuietEnd
}

// -----------------------------------------------------------------------------

// IsExchangeDayOff reports whether the configured exchange does not trade on t's date.
func (ms *MarketScheduler) IsExchangeDayOff(t time.Time) bool {
	if ms.Calendar == nil {
		return false
	}
	return !ms.Calendar.IsTradingDay(t)
}

// -----------------------------------------------------------------------------

func (ms *MarketScheduler) location() *time.Location {
	if ms.Location == nil {
		return time.Local
	}
	return ms.Location
}

// -----------------------------------------------------------------------------

func parseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got '%s': %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
