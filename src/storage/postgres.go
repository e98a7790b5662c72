package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stocks-ngine/src/helpers"
	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

// PostgresDB keeps the same tables as AsyncSQLiteDB inside a schema named
// after the executable.
type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	if cfg.Storage.DBConnectionString == "" {
		return nil, helpers.NewConfigurationError("storage.db_connection_string is empty", nil)
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return helpers.NewDatabaseError("open postgres", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping postgres", err)
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table(name string) string {
	return fmt.Sprintf(`"%s"."%s"`, d.Schema, name)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	queries := []struct {
		name  string
		query string
	}{
		{"instruments", `
			CREATE TABLE IF NOT EXISTS %s (
				figi TEXT PRIMARY KEY,
				ticker TEXT NOT NULL,
				isin TEXT,
				name TEXT,
				currency TEXT,
				type TEXT,
				lot BIGINT,
				min_price_increment NUMERIC,
				updated_at BIGINT
			);`},
		{"candles", `
			CREATE TABLE IF NOT EXISTS %s (
				figi TEXT,
				time BIGINT,
				interval TEXT,
				open NUMERIC,
				high NUMERIC,
				low NUMERIC,
				close NUMERIC,
				volume NUMERIC,
				PRIMARY KEY (figi, time, interval)
			);`},
		{"month_stats", `
			CREATE TABLE IF NOT EXISTS %s (
				figi TEXT PRIMARY KEY,
				month_open NUMERIC,
				month_high NUMERIC,
				month_low NUMERIC,
				month_volume NUMERIC,
				month_volume_cost NUMERIC,
				avg_day_volume NUMERIC,
				avg_day_price NUMERIC,
				avg_day_volume_cost NUMERIC,
				yesterday_volume NUMERIC,
				yesterday_avg_price NUMERIC,
				yesterday_volume_cost NUMERIC,
				candle_count INTEGER,
				updated_at BIGINT
			);`},
	}

	for _, q := range queries {
		if _, err := d.DB.Exec(fmt.Sprintf(q.query, d.table(q.name))); err != nil {
			return helpers.NewDatabaseError(fmt.Sprintf("failed to create %s", q.name), err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveInstruments(instruments []models.MMarketInstrument) error {
	if len(instruments) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (figi, ticker, isin, name, currency, type, lot, min_price_increment, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (figi) DO UPDATE SET
			ticker = EXCLUDED.ticker,
			isin = EXCLUDED.isin,
			name = EXCLUDED.name,
			currency = EXCLUDED.currency,
			type = EXCLUDED.type,
			lot = EXCLUDED.lot,
			min_price_increment = EXCLUDED.min_price_increment,
			updated_at = EXCLUDED.updated_at
	`, d.table("instruments")))
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

func (d *PostgresDB) SaveCandlesBulk(candles []models.MCandle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (figi, time, interval, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (figi, time, interval) DO NOTHING
	`, d.table("candles")))
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

func (d *PostgresDB) SaveMonthStats(s models.MMonthStats) error {
	_, err := d.DB.Exec(fmt.Sprintf(`
		INSERT INTO %s (figi, month_open, month_high, month_low, month_volume, month_volume_cost,
			avg_day_volume, avg_day_price, avg_day_volume_cost,
			yesterday_volume, yesterday_avg_price, yesterday_volume_cost, candle_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (figi) DO UPDATE SET
			month_open = EXCLUDED.month_open,
			month_high = EXCLUDED.month_high,
			month_low = EXCLUDED.month_low,
			month_volume = EXCLUDED.month_volume,
			month_volume_cost = EXCLUDED.month_volume_cost,
			avg_day_volume = EXCLUDED.avg_day_volume,
			avg_day_price = EXCLUDED.avg_day_price,
			avg_day_volume_cost = EXCLUDED.avg_day_volume_cost,
			yesterday_volume = EXCLUDED.yesterday_volume,
			yesterday_avg_price = EXCLUDED.yesterday_avg_price,
			yesterday_volume_cost = EXCLUDED.yesterday_volume_cost,
			candle_count = EXCLUDED.candle_count,
			updated_at = EXCLUDED.updated_at
	`, d.table("month_stats")), monthStatsArgs(s)...)
	if err != nil {
		return helpers.NewDatabaseError("save month stats of "+s.Figi, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) CleanupOldData(before time.Time) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE time < $1`, d.table("candles"))
	res, err := d.DB.Exec(query, before.UTC().Unix())
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

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
