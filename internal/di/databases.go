package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/tao-sentinel/internal/config"
	"github.com/aristath/tao-sentinel/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the sqlite databases and applies schemas.
// history.db is skipped when history lives in Postgres; cache.db when Redis is configured.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	if cfg.DatabaseURL == "" {
		// history.db - Append-only audit trail
		historyDB, err := openDatabase(cfg.DataDir, "history", database.ProfileLedger)
		if err != nil {
			return nil, err
		}
		container.HistoryDB = historyDB
	}

	if cfg.RedisURL == "" {
		// cache.db - Ephemeral dividend and sentiment cache
		cacheDB, err := openDatabase(cfg.DataDir, "cache", database.ProfileCache)
		if err != nil {
			if container.HistoryDB != nil {
				container.HistoryDB.Close()
			}
			return nil, err
		}
		container.CacheDB = cacheDB
	}

	for _, db := range container.Databases() {
		log.Info().Str("database", db.Name()).Str("path", db.Path()).Msg("Database initialized")
	}
	return container, nil
}

func openDatabase(dataDir, name string, profile database.DatabaseProfile) (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s database: %w", name, err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s database: %w", name, err)
	}
	return db, nil
}
