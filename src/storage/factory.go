package storage

import (
	"stocks-ngine/src/interfaces"
	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"
)

// NewDatabase picks the backend named by storage.db_type and migrates it.
// SQLite is the default.
func NewDatabase(cfg *models.MConfig) (interfaces.IDatabase, error) {
	var db interfaces.IDatabase

	switch cfg.Storage.DBType {
	case "postgres":
		pg, err := NewPostgresDB(cfg, logger.NewLogger(cfg, "PostgresDB"))
		if err != nil {
			return nil, err
		}
		db = pg
	default:
		lite, err := NewAsyncSQLiteDB(cfg, logger.NewLogger(cfg, "SQLiteDB"))
		if err != nil {
			return nil, err
		}
		db = lite
	}

	if err := db.Initialize(); err != nil {
		return nil, err
	}
	return db, nil
}
