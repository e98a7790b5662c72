package storage

import (
	"path/filepath"
	"testing"
	"time"

	"stocks-ngine/src/models"

	"github.com/shopspring/decimal"
)

func newTestDB(t *testing.T) *AsyncSQLiteDB {
	t.Helper()
	cfg := &models.MConfig{}
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), "stocks.db")

	db, err := NewDatabase(cfg)
	if err != nil {
		t.Fatalf("NewDatabase failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db.(*AsyncSQLiteDB)
}

func count(t *testing.T, db *AsyncSQLiteDB, query string, args ...interface{}) int {
	t.Helper()
	var n int
	if err := db.DB.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	return n
}

func TestSaveInstrumentsUpserts(t *testing.T) {
	db := newTestDB(t)

	in := models.MMarketInstrument{Figi: "F1", Ticker: "AAA", Lot: 1, MinPriceIncrement: decimal.RequireFromString("0.01")}
	if err := db.SaveInstruments([]models.MMarketInstrument{in}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	in.Lot = 10
	if err := db.SaveInstruments([]models.MMarketInstrument{in}); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	if n := count(t, db, "SELECT COUNT(*) FROM instruments"); n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
	if lot := count(t, db, "SELECT lot FROM instruments WHERE figi = ?", "F1"); lot != 10 {
		t.Fatalf("lot = %d, want 10", lot)
	}
}

func TestSaveCandlesIgnoresDuplicatesAndCleansUp(t *testing.T) {
	db := newTestDB(t)

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	candle := func(day int) models.MCandle {
		return models.MCandle{
			Figi:     "F1",
			Time:     base.AddDate(0, 0, day),
			Interval: models.CandleIntervalDay,
			Open:     decimal.NewFromInt(10),
			High:     decimal.NewFromInt(12),
			Low:      decimal.NewFromInt(9),
			Close:    decimal.NewFromInt(11),
			Volume:   decimal.NewFromInt(100),
		}
	}

	batch := []models.MCandle{candle(0), candle(1), candle(2)}
	if err := db.SaveCandlesBulk(batch); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := db.SaveCandlesBulk(batch[1:]); err != nil {
		t.Fatalf("duplicate save failed: %v", err)
	}
	if n := count(t, db, "SELECT COUNT(*) FROM candles"); n != 3 {
		t.Fatalf("rows = %d, want 3", n)
	}

	if err := db.CleanupOldData(base.AddDate(0, 0, 2)); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if n := count(t, db, "SELECT COUNT(*) FROM candles"); n != 1 {
		t.Fatalf("rows after cleanup = %d, want 1", n)
	}
}

func TestSaveMonthStatsKeepsDecimals(t *testing.T) {
	db := newTestDB(t)

	stats := models.MMonthStats{
		Figi:                 "F1",
		MonthHigh:            decimal.RequireFromString("15.25"),
		AvgDayVolumePerMonth: decimal.NewFromInt(200),
		CandleCount:          2,
	}
	if err := db.SaveMonthStats(stats); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	stats.CandleCount = 3
	if err := db.SaveMonthStats(stats); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	var high string
	var candles int
	err := db.DB.QueryRow("SELECT month_high, candle_count FROM month_stats WHERE figi = ?", "F1").Scan(&high, &candles)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if high != "15.25" || candles != 3 {
		t.Fatalf("got high=%s candles=%d", high, candles)
	}
}

func TestNewAsyncSQLiteDBRequiresPath(t *testing.T) {
	if _, err := NewAsyncSQLiteDB(&models.MConfig{}, nil); err == nil {
		t.Fatalf("expected an error for an empty path")
	}
}
