package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/tao-sentinel/internal/events"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// HistoryBackupJob uploads a history snapshot and rotates old ones.
type HistoryBackupJob struct {
	service       *BackupService
	bus           *events.Bus
	retentionDays int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewHistoryBackupJob creates a new HistoryBackupJob
func NewHistoryBackupJob(service *BackupService, bus *events.Bus, retentionDays int, log zerolog.Logger) *HistoryBackupJob {
	return &HistoryBackupJob{
		service:       service,
		bus:           bus,
		retentionDays: retentionDays,
		timeout:       10 * time.Minute,
		log:           log.With().Str("job", "history_backup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *HistoryBackupJob) Name() string {
	return "history_backup"
}

// Run executes the backup. Rotation failures are logged, not returned.
func (j *HistoryBackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.service.CreateAndUpload(ctx); err != nil {
		j.bus.EmitError("reliability", err, map[string]any{"job": j.Name()})
		return err
	}

	if _, err := j.service.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}

// Thresholds for the disk space check, in bytes.
const (
	criticalFreeBytes = 500 * 1000 * 1000
	warningFreeBytes  = 5 * 1000 * 1000 * 1000
)

// UsageFunc reports filesystem usage for a path.
type UsageFunc func(ctx context.Context, path string) (*disk.UsageStat, error)

// DiskSpaceJob checks free space on the data directory's filesystem.
type DiskSpaceJob struct {
	dataDir string
	usage   UsageFunc
	bus     *events.Bus
	log     zerolog.Logger
}

// NewDiskSpaceJob creates a new DiskSpaceJob
func NewDiskSpaceJob(dataDir string, bus *events.Bus, log zerolog.Logger) *DiskSpaceJob {
	return &DiskSpaceJob{
		dataDir: dataDir,
		usage:   disk.UsageWithContext,
		bus:     bus,
		log:     log.With().Str("job", "disk_space").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *DiskSpaceJob) Name() string {
	return "disk_space"
}

// Run returns an error when free space is below the critical threshold.
func (j *DiskSpaceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stat, err := j.usage(ctx, j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(stat.Free) / 1e9
	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	switch {
	case stat.Free < criticalFreeBytes:
		err := fmt.Errorf("only %.2f GB free on %s", availableGB, j.dataDir)
		j.log.Error().Float64("available_gb", availableGB).Msg("CRITICAL: Insufficient disk space")
		j.bus.EmitError("reliability", err, map[string]any{"job": j.Name()})
		return err
	case stat.Free < warningFreeBytes:
		j.log.Warn().Float64("available_gb", availableGB).Msg("Disk space running low")
	}
	return nil
}
