package supervisor

import (
	"context"
	"fmt"

	"stocks-ngine/src/models"
	"stocks-ngine/src/utils"
)

// inboundItem is queued by the stream callback for the response workers.
type inboundItem interface {
	inboundItem()
}

type candleItem struct {
	candle models.MCandle
}

// instrumentItem asks the workers to publish an already applied update.
type instrumentItem struct {
	instrument *models.MInstrument
}

func (candleItem) inboundItem()     {}
func (instrumentItem) inboundItem() {}

// -----------------------------------------------------------------------------

// onStreamEvent runs on a connection's read goroutine and must not block.
func (m *StocksManager) onStreamEvent(event models.MStreamEvent) {
	switch e := event.(type) {
	case models.MCandleEvent:
		m.touchLastEvent()
		m.events.Push(candleItem{candle: e.Candle})

	case models.MOrderbookEvent:
		m.touchLastEvent()
		if inst := m.applyOrderbook(e); inst != nil {
			m.events.Push(instrumentItem{instrument: inst})
		}

	case models.MInstrumentInfoEvent:
		m.touchLastEvent()
		if inst, ok := m.registry.Get(e.Figi); ok {
			inst.Lock()
			inst.Status = e.TradeStatus
			inst.Unlock()
			m.events.Push(instrumentItem{instrument: inst})
		}

	case models.MStreamErrorEvent:
		m.Logger.Warning("Broker stream error (request %s): %s", e.RequestID, e.Error)
	}
}

// -----------------------------------------------------------------------------

func (m *StocksManager) responseLoop(ctx context.Context) {
	for ctx.Err() == nil {
		for ctx.Err() == nil {
			item, ok := m.events.TryPop()
			if !ok {
				break
			}
			m.processItem(ctx, item)
		}

		if utils.SleepContext(ctx, idleDelay) != nil {
			return
		}
	}
}

// -----------------------------------------------------------------------------

func (m *StocksManager) processItem(ctx context.Context, item inboundItem) {
	switch it := item.(type) {
	case candleItem:
		if err := m.safeProcessCandle(ctx, it.candle); err != nil {
			m.Logger.Error("Error while processing candle %s %s at %s: %v",
				it.candle.Figi, it.candle.Interval, it.candle.Time.Format("2006-01-02 15:04"), err)
		}
	case instrumentItem:
		m.notify(ctx, it.instrument)
	}
}

// -----------------------------------------------------------------------------

func (m *StocksManager) safeProcessCandle(ctx context.Context, c models.MCandle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return m.processCandle(ctx, c)
}
