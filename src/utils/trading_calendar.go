package utils

import (
	"strings"
	"time"

	"stocks-ngine/src/logger"

	"github.com/scmhub/calendar"
)

// TradingCalendar tells trading days from exchange days off for one MIC.
type TradingCalendar struct {
	MIC      string
	Calendar *calendar.Calendar
	Weekdays bool // no calendar for the MIC; every Mon-Fri counts as trading
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// GetCalendar loads the scmhub calendar of an exchange by its ISO 10383 MIC,
// e.g. "xnys" or "xmos".
func GetCalendar(mic string, l *logger.Logger) *TradingCalendar {
	mic = strings.ToLower(strings.TrimSpace(mic))

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		if l != nil {
			l.Warning("No exchange calendar for MIC '%s', treating weekdays as trading days", mic)
		}
		return &TradingCalendar{MIC: mic, Weekdays: true}
	}

	return &TradingCalendar{MIC: mic, Calendar: cal, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

// IsTradingDay evaluates date in the exchange's own timezone.
func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Weekdays {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}
