package di

import (
	"fmt"

	"github.com/aristath/tao-sentinel/internal/cache"
	"github.com/aristath/tao-sentinel/internal/config"
	"github.com/aristath/tao-sentinel/internal/reliability"
	"github.com/aristath/tao-sentinel/internal/scheduler"
	"github.com/rs/zerolog"
)

// Job schedules (cron with seconds)
const (
	cacheCleanupSchedule   = "0 */10 * * * *"
	checkDatabasesSchedule = "0 0 * * * *"
	walCheckpointSchedule  = "0 */30 * * * *"
	diskSpaceSchedule      = "0 */15 * * * *"
)

// RegisterJobs creates the maintenance jobs and registers them with the scheduler.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Scheduler == nil {
		return nil, fmt.Errorf("container scheduler cannot be nil")
	}

	instances := &JobInstances{}
	sched := container.Scheduler
	dbs := container.Databases()

	if container.SQLiteCache != nil {
		instances.CacheCleanup = cache.NewCleanupJob(container.SQLiteCache, log)
		if err := sched.AddJob(cacheCleanupSchedule, instances.CacheCleanup); err != nil {
			return nil, err
		}
	}

	instances.CheckDatabases = scheduler.NewCheckDatabasesJob(dbs, log)
	if err := sched.AddJob(checkDatabasesSchedule, instances.CheckDatabases); err != nil {
		return nil, err
	}

	instances.WALCheckpoint = scheduler.NewWALCheckpointJob(dbs, log)
	if err := sched.AddJob(walCheckpointSchedule, instances.WALCheckpoint); err != nil {
		return nil, err
	}

	instances.DiskSpace = reliability.NewDiskSpaceJob(cfg.DataDir, container.EventBus, log)
	if err := sched.AddJob(diskSpaceSchedule, instances.DiskSpace); err != nil {
		return nil, err
	}

	if container.Backup != nil {
		instances.HistoryBackup = reliability.NewHistoryBackupJob(container.Backup, container.EventBus, cfg.Backup.RetentionDays, log)
		if err := sched.AddJob(cfg.Backup.Schedule, instances.HistoryBackup); err != nil {
			return nil, err
		}
	}

	log.Info().Msg("Jobs registered")
	return instances, nil
}
