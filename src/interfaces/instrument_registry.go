package interfaces

import (
	"context"
	"time"

	"stocks-ngine/src/models"
)

// -----------------------------------------------------------------------------
// IInstrumentRegistry owns the instrument state records.
// -----------------------------------------------------------------------------

type IInstrumentRegistry interface {

	// Instruments returns every registered instrument.
	Instruments() []*models.MInstrument

	// Get finds an instrument by figi.
	Get(figi string) (*models.MInstrument, bool)

	// CreateInstrument builds a state record without registering it.
	CreateInstrument(desc models.MMarketInstrument) *models.MInstrument

	// AddInstruments registers the given instruments, skipping known figis.
	AddInstruments(ctx context.Context, instruments []*models.MInstrument) error

	// AddMessage appends an entry to the message log.
	AddMessage(ticker string, date time.Time, text string)
}

// -----------------------------------------------------------------------------
// IUpdateNotifier is told about every externally visible instrument mutation.
// -----------------------------------------------------------------------------

type IUpdateNotifier interface {
	OnInstrumentUpdated(ctx context.Context, instrument *models.MInstrument)
}

// -----------------------------------------------------------------------------
// IMessageLog exposes the registry message log.
// -----------------------------------------------------------------------------

type IMessageLog interface {
	Messages() []models.MLogMessage
}
