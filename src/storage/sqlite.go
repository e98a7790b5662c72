package storage

import (
	"database/sql"
	"fmt"
	"time"

	"stocks-ngine/src/helpers"
	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

// AsyncSQLiteDB persists instruments, candle history and month stats to a
// local SQLite file. Decimals are stored as TEXT to keep them exact.
type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	if cfg.Storage.DBPath == "" {
		return nil, helpers.NewConfigurationError("storage.db_path is empty", nil)
	}
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewDatabaseError("open sqlite "+dsn, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping sqlite "+dsn, err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	queries := map[string]string{
		"instruments": `
			CREATE TABLE IF NOT EXISTS instruments (
				figi TEXT PRIMARY KEY,
				ticker TEXT NOT NULL,
				isin TEXT,
				name TEXT,
				currency TEXT,
				type TEXT,
				lot INTEGER,
				min_price_increment TEXT,
				updated_at INTEGER
			);`,
		"candles": `
			CREATE TABLE IF NOT EXISTS candles (
				figi TEXT,
				time INTEGER,
				interval TEXT,
				open TEXT,
				high TEXT,
				low TEXT,
				close TEXT,
				volume TEXT,
				PRIMARY KEY (figi, time, interval)
			);`,
		"month_stats": `
			CREATE TABLE IF NOT EXISTS month_stats (
				figi TEXT PRIMARY KEY,
				month_open TEXT,
				month_high TEXT,
				month_low TEXT,
				month_volume TEXT,
				month_volume_cost TEXT,
				avg_day_volume TEXT,
				avg_day_price TEXT,
				avg_day_volume_cost TEXT,
				yesterday_volume TEXT,
				yesterday_avg_price TEXT,
				yesterday_volume_cost TEXT,
				candle_count INTEGER,
				updated_at INTEGER
			);`,
	}

	for _, table := range []string{"instruments", "candles", "month_stats"} {
		if _, err := d.DB.Exec(queries[table]); err != nil {
			return helpers.NewDatabaseError(fmt.Sprintf("failed to create %s", table), err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveInstruments(instruments []models.MMarketInstrument) error {
	if len(instruments) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO instruments (figi, ticker, isin, name, currency, type, lot, min_price_increment, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (figi) DO UPDATE SET
			ticker = excluded.ticker,
			isin = excluded.isin,
			name = excluded.name,
			currency = excluded.currency,
			type = excluded.type,
			lot = excluded.lot,
			min_price_increment = excluded.min_price_increment,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for _, in := range instruments {
		_, err := stmt.Exec(in.Figi, in.Ticker, in.Isin, in.Name, in.Currency, in.Type, in.Lot, in.MinPriceIncrement.String(), now)
		if err != nil {
			return helpers.NewDatabaseError("save instrument "+in.Figi, err)
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveCandlesBulk(candles []models.MCandle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO candles (figi, time, interval, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.Exec(c.Figi, c.Time.UTC().Unix(), string(c.Interval),
			c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(), c.Volume.String())
		if err != nil {
			return helpers.NewDatabaseError("save candle of "+c.Figi, err)
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveMonthStats(s models.MMonthStats) error {
	_, err := d.DB.Exec(`
		INSERT INTO month_stats (figi, month_open, month_high, month_low, month_volume, month_volume_cost,
			avg_day_volume, avg_day_price, avg_day_volume_cost,
			yesterday_volume, yesterday_avg_price, yesterday_volume_cost, candle_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (figi) DO UPDATE SET
			month_open = excluded.month_open,
			month_high = excluded.month_high,
			month_low = excluded.month_low,
			month_volume = excluded.month_volume,
			month_volume_cost = excluded.month_volume_cost,
			avg_day_volume = excluded.avg_day_volume,
			avg_day_price = excluded.avg_day_price,
			avg_day_volume_cost = excluded.avg_day_volume_cost,
			yesterday_volume = excluded.yesterday_volume,
			yesterday_avg_price = excluded.yesterday_avg_price,
			yesterday_volume_cost = excluded.yesterday_volume_cost,
			candle_count = excluded.candle_count,
			updated_at = excluded.updated_at
	`, monthStatsArgs(s)...)
	if err != nil {
		return helpers.NewDatabaseError("save month stats of "+s.Figi, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldData(before time.Time) error {
	cutoff := before.UTC().Unix()

	res, err := d.DB.Exec("DELETE FROM candles WHERE time < ?", cutoff)
	if err != nil {
		d.Logger.Error("Cleanup candles error: %v", err)
		return helpers.NewDatabaseError("cleanup candles", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		d.Logger.Info("Cleanup removed %d candles older than %s", n, before.Format(time.RFC3339))
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------

// monthStatsArgs orders the month_stats columns for both dialects.
func monthStatsArgs(s models.MMonthStats) []interface{} {
	updated := s.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return []interface{}{
		s.Figi,
		s.MonthOpen.String(),
		s.MonthHigh.String(),
		s.MonthLow.String(),
		s.MonthVolume.String(),
		s.MonthVolumeCost.String(),
		s.AvgDayVolumePerMonth.String(),
		s.AvgDayPricePerMonth.String(),
		s.AvgDayVolumePerMonthCost.String(),
		s.YesterdayVolume.String(),
		s.YesterdayAvgPrice.String(),
		s.YesterdayVolumeCost.String(),
		s.CandleCount,
		updated.UTC().Unix(),
	}
}
