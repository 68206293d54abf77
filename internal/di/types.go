// Package di provides dependency injection type definitions.
package di

import (
	"errors"

	"github.com/aristath/tao-sentinel/internal/cache"
	"github.com/aristath/tao-sentinel/internal/clients/chutes"
	"github.com/aristath/tao-sentinel/internal/clients/datura"
	"github.com/aristath/tao-sentinel/internal/clients/subtensor"
	"github.com/aristath/tao-sentinel/internal/database"
	"github.com/aristath/tao-sentinel/internal/domain"
	"github.com/aristath/tao-sentinel/internal/events"
	"github.com/aristath/tao-sentinel/internal/modules/dividends"
	"github.com/aristath/tao-sentinel/internal/modules/sentiment"
	"github.com/aristath/tao-sentinel/internal/modules/trading"
	"github.com/aristath/tao-sentinel/internal/reliability"
	"github.com/aristath/tao-sentinel/internal/scheduler"
	"github.com/redis/go-redis/v9"
)

// Container holds all dependencies for the application.
// It is created by Wire and handed to the server and main.
type Container struct {
	// Databases
	HistoryDB *database.DB // Append-only audit trail (dividend reads, trades, sentiment)
	CacheDB   *database.DB // Fallback cache when no Redis URL is configured

	// Stores
	RedisClient *redis.Client      // nil when the sqlite cache is used
	Cache       cache.Store        // Redis or sqlite
	SQLiteCache *cache.SQLiteStore // nil when Redis is used
	History     domain.HistoryStore

	// Clients
	Ledger *subtensor.Client
	Social *datura.Client
	LLM    *chutes.Client

	// Services
	EventBus  *events.Bus
	Signal    *sentiment.SignalAdapter
	Workflow  *trading.Workflow
	Dividends *dividends.Service
	Backup    *reliability.BackupService // nil when backups are disabled

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered jobs for manual triggering.
type JobInstances struct {
	CacheCleanup   *cache.CleanupJob // nil when Redis is used
	CheckDatabases *scheduler.CheckDatabasesJob
	WALCheckpoint  *scheduler.WALCheckpointJob
	DiskSpace      *reliability.DiskSpaceJob
	HistoryBackup  *reliability.HistoryBackupJob // nil when backups are disabled
}

// Databases returns the open sqlite databases.
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.HistoryDB, c.CacheDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close releases every connection the container owns.
func (c *Container) Close() error {
	var errs []error
	if c.Ledger != nil {
		errs = append(errs, c.Ledger.Close())
	}
	if c.History != nil {
		errs = append(errs, c.History.Close())
	}
	if c.RedisClient != nil {
		errs = append(errs, c.RedisClient.Close())
	}
	for _, db := range c.Databases() {
		errs = append(errs, db.Close())
	}
	return errors.Join(errs...)
}
