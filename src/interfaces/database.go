package interfaces

import (
	"time"

	"stocks-ngine/src/models"
)

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveInstruments upserts instrument descriptors.
	SaveInstruments(instruments []models.MMarketInstrument) error

	// -----------------------------------------------------------------------------

	// SaveCandlesBulk inserts candles, ignoring ones already stored for (figi, time, interval).
	SaveCandlesBulk(candles []models.MCandle) error

	// -----------------------------------------------------------------------------

	// SaveMonthStats upserts the latest monthly aggregates of an instrument.
	SaveMonthStats(stats models.MMonthStats) error

	// -----------------------------------------------------------------------------

	// CleanupOldData removes candles older than the cutoff.
	CleanupOldData(before time.Time) error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
