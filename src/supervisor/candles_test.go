package supervisor

import (
	"context"
	"testing"
	"time"

	"stocks-ngine/src/models"

	"github.com/shopspring/decimal"
)

func dayCandle(figi string, at time.Time, open, closePrice int64, volume string) models.MCandle {
	return models.MCandle{
		Figi:     figi,
		Time:     at,
		Interval: models.CandleIntervalDay,
		Open:     dec(open),
		Close:    dec(closePrice),
		High:     dec(closePrice),
		Low:      dec(open),
		Volume:   decimal.RequireFromString(volume),
	}
}

func minuteCandle(figi string, at time.Time) models.MCandle {
	return models.MCandle{Figi: figi, Time: at, Interval: models.CandleIntervalMinute, Close: dec(1)}
}

func TestDayCandleUpdatesInstrument(t *testing.T) {
	h := newHarness(t)
	insts := h.addInstruments(t, 1, func(_ int, inst *models.MInstrument) {
		inst.AvgDayVolumePerMonth = dec(200)
	})
	ctx := context.Background()

	c := dayCandle("F000", testNow.Add(-3*time.Hour), 100, 110, "300.9")
	if err := h.m.processCandle(ctx, c); err != nil {
		t.Fatalf("processCandle failed: %v", err)
	}

	inst := insts[0]
	inst.RLock()
	defer inst.RUnlock()
	if !inst.Price.Equal(dec(110)) || !inst.TodayOpen.Equal(dec(100)) {
		t.Errorf("price/open = %s/%s", inst.Price, inst.TodayOpen)
	}
	if !inst.DayChange.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("DayChange = %s, want 0.1", inst.DayChange)
	}
	if !inst.DayVolume.Equal(dec(300)) {
		t.Errorf("DayVolume = %s, want truncated 300", inst.DayVolume)
	}
	if !inst.DayVolChgOfAvg.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("DayVolChgOfAvg = %s, want 1.5", inst.DayVolChgOfAvg)
	}
	if !inst.LastUpdate.Equal(testNow) {
		t.Errorf("LastUpdate = %v", inst.LastUpdate)
	}
	if h.notifier.of("F000") != 1 {
		t.Errorf("expected one notification")
	}
}

func TestDayCandleQueuesMinuteSubscriptionOnce(t *testing.T) {
	h := newHarness(t)
	h.addInstruments(t, 1, nil)
	ctx := context.Background()
	h.m.prepareConnection(ctx)

	for i := 0; i < 3; i++ {
		h.m.processCandle(ctx, dayCandle("F000", testNow, 10, 11, "5"))
	}
	if h.m.actions.Len() != 1 {
		t.Fatalf("queued actions = %d, want 1 minute subscription", h.m.actions.Len())
	}

	act, _ := h.m.actions.TryPop()
	if err := h.m.runAction(ctx, act); err != nil {
		t.Fatalf("action failed: %v", err)
	}
	sent := h.m.conns.Load().Common.(*fakeConnection).sent()
	if len(sent) != 1 || sent[0].Kind != models.SubscribeCandleKind || sent[0].Interval != models.CandleIntervalMinute {
		t.Fatalf("unexpected requests on the primary connection: %+v", sent)
	}
}

func TestStaleDayCandleIsIgnored(t *testing.T) {
	h := newHarness(t)
	insts := h.addInstruments(t, 1, func(_ int, inst *models.MInstrument) {
		inst.LastUpdate = testNow.Add(-time.Hour)
		inst.Price = dec(50)
	})

	h.m.processCandle(context.Background(), dayCandle("F000", testNow.AddDate(0, 0, -2), 10, 11, "5"))

	insts[0].RLock()
	defer insts[0].RUnlock()
	if !insts[0].Price.Equal(dec(50)) {
		t.Fatalf("replayed candle overwrote the price: %s", insts[0].Price)
	}
}

func TestOldDayCandleAcceptedForFreshInstrument(t *testing.T) {
	h := newHarness(t)
	insts := h.addInstruments(t, 1, nil)

	h.m.processCandle(context.Background(), dayCandle("F000", testNow.AddDate(0, 0, -2), 10, 11, "5"))

	insts[0].RLock()
	defer insts[0].RUnlock()
	if !insts[0].Price.Equal(dec(11)) {
		t.Fatalf("first candle of an instrument must be applied, price %s", insts[0].Price)
	}
}

func TestMinuteCandleIsLogged(t *testing.T) {
	h := newHarness(t)
	insts := h.addInstruments(t, 1, func(_ int, inst *models.MInstrument) {
		inst.TodayDate = testNow.Add(-2 * time.Hour)
	})

	h.m.processCandle(context.Background(), minuteCandle("F000", testNow.Add(-time.Minute)))

	insts[0].RLock()
	defer insts[0].RUnlock()
	if insts[0].MinuteCandles.Size() != 1 || !insts[0].LastUpdate.Equal(testNow) {
		t.Fatalf("minute candle not applied")
	}
}

func TestMinuteCandleOfNewDayForcesReconnect(t *testing.T) {
	h := newHarness(t)
	lastUpdate := testNow.Add(-time.Minute)
	insts := h.addInstruments(t, 1, func(_ int, inst *models.MInstrument) {
		inst.TodayDate = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
		inst.LastUpdate = lastUpdate
		inst.MinuteCandles.Append(minuteCandle("F000", inst.TodayDate))
		inst.MinuteCandles.Append(minuteCandle("F000", inst.TodayDate.Add(time.Minute)))
	})
	ctx := context.Background()
	h.m.prepareConnection(ctx)

	h.m.processCandle(ctx, minuteCandle("F000", time.Date(2025, 3, 5, 4, 0, 0, 0, time.UTC)))

	if h.factory.count() != 6 {
		t.Fatalf("expected a reconnect, got %d connections", h.factory.count())
	}
	insts[0].RLock()
	defer insts[0].RUnlock()
	if insts[0].MinuteCandles.Size() != 2 {
		t.Errorf("rollover candle must be discarded, size %d", insts[0].MinuteCandles.Size())
	}
	if !insts[0].LastUpdate.Equal(lastUpdate) {
		t.Errorf("LastUpdate changed to %v", insts[0].LastUpdate)
	}
}

func TestMinuteCandleOfNewDayBeforeMorningIsLogged(t *testing.T) {
	h := newHarness(t)
	insts := h.addInstruments(t, 1, func(_ int, inst *models.MInstrument) {
		inst.TodayDate = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
		inst.MinuteCandles.Append(minuteCandle("F000", inst.TodayDate))
		inst.MinuteCandles.Append(minuteCandle("F000", inst.TodayDate.Add(time.Minute)))
	})

	h.m.processCandle(context.Background(), minuteCandle("F000", time.Date(2025, 3, 5, 2, 0, 0, 0, time.UTC)))

	if h.factory.count() != 0 {
		t.Fatalf("night-session candle must not reconnect")
	}
	insts[0].RLock()
	defer insts[0].RUnlock()
	if insts[0].MinuteCandles.Size() != 3 {
		t.Errorf("candle not logged")
	}
}

func TestCandleForUnknownInstrumentIsIgnored(t *testing.T) {
	h := newHarness(t)
	if err := h.m.processCandle(context.Background(), dayCandle("NOPE", testNow, 1, 2, "1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.m.actions.Len() != 0 {
		t.Fatalf("unknown instrument queued work")
	}
}

func TestStreamEventsAreDispatched(t *testing.T) {
	h := newHarness(t)
	insts := h.addInstruments(t, 1, nil)
	ctx := context.Background()

	h.m.onStreamEvent(models.MInstrumentInfoEvent{Figi: "F000", TradeStatus: "normal_trading"})
	h.m.onStreamEvent(models.MCandleEvent{Candle: dayCandle("F000", testNow, 10, 12, "7")})
	h.m.onStreamEvent(models.MStreamErrorEvent{Error: "bad figi", RequestID: "x"})

	if h.m.events.Len() != 2 {
		t.Fatalf("queued items = %d, want 2", h.m.events.Len())
	}
	for {
		item, ok := h.m.events.TryPop()
		if !ok {
			break
		}
		h.m.processItem(ctx, item)
	}

	insts[0].RLock()
	defer insts[0].RUnlock()
	if insts[0].Status != "normal_trading" || !insts[0].Price.Equal(dec(12)) {
		t.Fatalf("events not applied: status=%q price=%s", insts[0].Status, insts[0].Price)
	}
	if h.notifier.of("F000") != 2 {
		t.Errorf("notifications = %d, want 2", h.notifier.of("F000"))
	}
	if h.m.lastEvent.Load() == 0 {
		t.Errorf("last event time not recorded")
	}
}

func TestOrderbookEvent(t *testing.T) {
	h := newHarness(t)
	insts := h.addInstruments(t, 1, nil)

	level := func(p string, q string) models.MOrderbookLevel {
		return models.MOrderbookLevel{Price: decimal.RequireFromString(p), Quantity: decimal.RequireFromString(q)}
	}
	h.m.onStreamEvent(models.MOrderbookEvent{
		Figi:  "F000",
		Depth: 5,
		Bids:  []models.MOrderbookLevel{level("10.5", "0.5"), level("10.4", "3")},
		Asks:  []models.MOrderbookLevel{level("10.6", "2")},
	})

	book, ok := h.m.Orderbook("T000")
	if !ok {
		t.Fatalf("order book not stored")
	}
	if len(book.Bids) != 1 || book.Figi != "F000" || book.Depth != 5 {
		t.Fatalf("unexpected book: %+v", book)
	}
	insts[0].RLock()
	bid, ask := insts[0].BestBid, insts[0].BestAsk
	insts[0].RUnlock()
	if !bid.Equal(decimal.RequireFromString("10.4")) || !ask.Equal(decimal.RequireFromString("10.6")) {
		t.Errorf("best quotes = %s/%s", bid, ask)
	}
	if h.m.events.Len() != 1 {
		t.Errorf("order book update not queued for notification")
	}

	h.m.onStreamEvent(models.MOrderbookEvent{Figi: "F000", Bids: []models.MOrderbookLevel{level("1", "1")}})
	if h.m.events.Len() != 1 {
		t.Errorf("one-sided book must be ignored")
	}
}
