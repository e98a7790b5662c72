package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"stocks-ngine/src/interfaces"
	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"
	"stocks-ngine/src/utils"
)

const DefaultMessageLogSize = 500

// MainModel is the in-memory instrument registry. It fans instrument updates out to
// the registered notifiers and keeps a bounded message log.
type MainModel struct {
	Config *models.MConfig
	Store  interfaces.IDatabase // optional
	Logger *logger.Logger

	mu          sync.RWMutex
	instruments map[string]*models.MInstrument
	notifiers   []interfaces.IUpdateNotifier

	messagesMu sync.Mutex
	messages   *utils.RingBuffer[models.MLogMessage]
}

// -----------------------------------------------------------------------------

func NewMainModel(cfg *models.MConfig, store interfaces.IDatabase, log *logger.Logger) *MainModel {
	return &MainModel{
		Config:      cfg,
		Store:       store,
		Logger:      log,
		instruments: make(map[string]*models.MInstrument),
		messages:    utils.NewRingBuffer[models.MLogMessage](DefaultMessageLogSize),
	}
}

// -----------------------------------------------------------------------------

// AddNotifier registers a receiver of instrument updates.
func (m *MainModel) AddNotifier(n interfaces.IUpdateNotifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

// -----------------------------------------------------------------------------

// Instruments returns all instruments ordered by ticker.
func (m *MainModel) Instruments() []*models.MInstrument {
	m.mu.RLock()
	out := make([]*models.MInstrument, 0, len(m.instruments))
	for _, inst := range m.instruments {
		out = append(out, inst)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// -----------------------------------------------------------------------------

func (m *MainModel) Get(figi string) (*models.MInstrument, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instruments[figi]
	return inst, ok
}

// -----------------------------------------------------------------------------

// FindByTicker does a linear scan; tickers are not indexed.
func (m *MainModel) FindByTicker(ticker string) (*models.MInstrument, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inst := range m.instruments {
		if inst.Ticker == ticker {
			return inst, true
		}
	}
	return nil, false
}

// -----------------------------------------------------------------------------

func (m *MainModel) CreateInstrument(desc models.MMarketInstrument) *models.MInstrument {
	inst := models.NewInstrument(desc, utils.DefaultMinuteCandleCapacity)
	if m.Config != nil && m.Config.MonthStats.StalenessHours > 0 {
		inst.MonthStatsTTL = time.Duration(m.Config.MonthStats.StalenessHours) * time.Hour
	}
	return inst
}

// -----------------------------------------------------------------------------

// AddInstruments registers instruments not yet known and persists their descriptors.
func (m *MainModel) AddInstruments(ctx context.Context, instruments []*models.MInstrument) error {
	// 1. Register under the lock
	added := make([]models.MMarketInstrument, 0, len(instruments))
	m.mu.Lock()
	for _, inst := range instruments {
		if inst == nil || inst.Figi == "" {
			continue
		}
		if _, exists := m.instruments[inst.Figi]; exists {
			continue
		}
		m.instruments[inst.Figi] = inst
		added = append(added, models.MMarketInstrument{
			Figi:              inst.Figi,
			Ticker:            inst.Ticker,
			Isin:              inst.Isin,
			Name:              inst.Name,
			Currency:          inst.Currency,
			Lot:               inst.Lot,
			MinPriceIncrement: inst.MinPriceIncrement,
		})
	}
	total := len(m.instruments)
	m.mu.Unlock()

	if len(added) == 0 {
		return nil
	}
	m.Logger.Info("Registered %d new instruments (%d total)", len(added), total)

	// 2. Persist outside the lock
	if m.Store != nil {
		if err := m.Store.SaveInstruments(added); err != nil {
			return fmt.Errorf("failed to persist %d instruments: %w", len(added), err)
		}
	}
	return ctx.Err()
}

// -----------------------------------------------------------------------------

// OnInstrumentUpdated forwards an update to every notifier.
func (m *MainModel) OnInstrumentUpdated(ctx context.Context, inst *models.MInstrument) {
	m.mu.RLock()
	notifiers := make([]interfaces.IUpdateNotifier, len(m.notifiers))
	copy(notifiers, m.notifiers)
	m.mu.RUnlock()

	for _, n := range notifiers {
		n.OnInstrumentUpdated(ctx, inst)
	}
}

// -----------------------------------------------------------------------------

func (m *MainModel) AddMessage(ticker string, date time.Time, text string) {
	m.messagesMu.Lock()
	m.messages.Append(models.MLogMessage{Ticker: ticker, Date: date, Text: text})
	m.messagesMu.Unlock()
}

// -----------------------------------------------------------------------------

// Messages returns the message log, oldest first.
func (m *MainModel) Messages() []models.MLogMessage {
	m.messagesMu.Lock()
	defer m.messagesMu.Unlock()
	return m.messages.GetLatest(m.messages.Size())
}
