package di

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aristath/tao-sentinel/internal/cache"
	"github.com/aristath/tao-sentinel/internal/config"
	"github.com/aristath/tao-sentinel/internal/history"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:       t.TempDir(),
		APIAuthToken:  "test-token",
		SubtensorURL:  "ws://127.0.0.1:1",
		DefaultNetuid: 18,
		DefaultHotkey: "5Default",
		DaturaBaseURL: "http://127.0.0.1:1",
		ChutesBaseURL: "http://127.0.0.1:1",
		ChutesModel:   "test-model",
		Backup:        config.BackupConfig{Schedule: "0 0 3 * * *"},
		Policy:        config.DefaultPolicy(),
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.NotNil(t, container.HistoryDB)
	assert.NotNil(t, container.CacheDB)
	assert.Len(t, container.Databases(), 2)
	assert.Nil(t, container.RedisClient)
	assert.IsType(t, &cache.SQLiteStore{}, container.Cache)
	assert.IsType(t, &history.SQLiteRepository{}, container.History)

	assert.NotNil(t, container.EventBus)
	assert.NotNil(t, container.Ledger)
	assert.NotNil(t, container.Signal)
	assert.NotNil(t, container.Workflow)
	assert.NotNil(t, container.Dividends)
	assert.NotNil(t, container.Scheduler)
	assert.Nil(t, container.Backup, "backups are off without a bucket")

	assert.NotNil(t, jobs.CacheCleanup)
	assert.NotNil(t, jobs.CheckDatabases)
	assert.NotNil(t, jobs.WALCheckpoint)
	assert.NotNil(t, jobs.DiskSpace)
	assert.Nil(t, jobs.HistoryBackup)

	assert.NoError(t, jobs.CheckDatabases.Run())
	assert.NoError(t, jobs.CacheCleanup.Run())
}

func TestWire_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr()

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.Nil(t, container.CacheDB)
	assert.NotNil(t, container.RedisClient)
	assert.IsType(t, &cache.RedisStore{}, container.Cache)
	assert.Nil(t, jobs.CacheCleanup, "redis expires keys itself")
	assert.Len(t, container.Databases(), 1)

	require.NoError(t, container.Cache.Set(context.Background(), "k", []byte("v"), 0))
	assert.True(t, mr.Exists(redisKeyPrefix+"k"))
}

func TestWire_InvalidRedisURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisURL = "not-a-url"

	_, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "failed to initialize repositories")
}

func TestWire_BackupsEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup = config.BackupConfig{
		Bucket:          "history-backups",
		Endpoint:        "http://127.0.0.1:9000",
		Region:          "auto",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Schedule:        "0 0 3 * * *",
		RetentionDays:   30,
	}

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.NotNil(t, container.Backup)
	assert.NotNil(t, jobs.HistoryBackup)
}

func TestWire_InvalidBackupSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup = config.BackupConfig{Bucket: "b", Region: "auto", Schedule: "whenever"}

	_, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "failed to register jobs")
}
