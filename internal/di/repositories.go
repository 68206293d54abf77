package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/tao-sentinel/internal/cache"
	"github.com/aristath/tao-sentinel/internal/config"
	"github.com/aristath/tao-sentinel/internal/history"
	"github.com/rs/zerolog"
)

const redisKeyPrefix = "tao-sentinel:"

// InitializeRepositories builds the cache store and the history store.
func InitializeRepositories(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		container.RedisClient = client
		container.Cache = cache.NewRedisStore(client, redisKeyPrefix)
		log.Info().Msg("Using Redis cache")
	} else {
		container.SQLiteCache = cache.NewSQLiteStore(container.CacheDB.Conn())
		container.Cache = container.SQLiteCache
		log.Info().Msg("Using sqlite cache")
	}

	if cfg.DatabaseURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		repo, err := history.ConnectPostgres(connectCtx, cfg.DatabaseURL, log)
		if err != nil {
			return fmt.Errorf("failed to connect history database: %w", err)
		}
		container.History = repo
		log.Info().Msg("Using Postgres history")
	} else {
		container.History = history.NewSQLiteRepository(container.HistoryDB.Conn(), log)
		log.Info().Msg("Using sqlite history")
	}

	return nil
}
