package reliability

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/tao-sentinel/internal/database"
	"github.com/aristath/tao-sentinel/internal/events"
	"github.com/rs/zerolog"
)

const (
	backupPrefix     = "history/history-"
	backupSuffix     = ".db.gz"
	backupTimeLayout = "2006-01-02-150405"
	minBackupsToKeep = 3
)

// BackupInfo represents one history backup in the bucket
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// BackupService snapshots the history database and ships it to object storage.
type BackupService struct {
	db         *database.DB
	store      ObjectStore
	bus        *events.Bus
	stagingDir string
	now        func() time.Time
	log        zerolog.Logger
}

// NewBackupService creates a backup service staging snapshots under dataDir.
func NewBackupService(db *database.DB, store ObjectStore, bus *events.Bus, dataDir string, log zerolog.Logger) *BackupService {
	return &BackupService{
		db:         db,
		store:      store,
		bus:        bus,
		stagingDir: filepath.Join(dataDir, "backup-staging"),
		now:        time.Now,
		log:        log.With().Str("service", "history_backup").Logger(),
	}
}

// BackupKey returns the object key for a snapshot taken at ts.
func BackupKey(ts time.Time) string {
	return backupPrefix + ts.UTC().Format(backupTimeLayout) + backupSuffix
}

// CreateAndUpload snapshots the database, gzips it and uploads it.
func (s *BackupService) CreateAndUpload(ctx context.Context) (BackupInfo, error) {
	s.log.Info().Msg("Starting history backup")
	startTime := time.Now()

	// VACUUM INTO refuses to overwrite a snapshot left by an interrupted run
	_ = os.RemoveAll(s.stagingDir)
	if err := os.MkdirAll(s.stagingDir, 0755); err != nil {
		return BackupInfo{}, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(s.stagingDir)

	ts := s.now().UTC()
	snapshot := filepath.Join(s.stagingDir, "history.db")
	if err := s.db.BackupTo(ctx, snapshot); err != nil {
		return BackupInfo{}, err
	}

	archive := snapshot + ".gz"
	if err := gzipFile(snapshot, archive); err != nil {
		return BackupInfo{}, fmt.Errorf("failed to compress snapshot: %w", err)
	}

	stat, err := os.Stat(archive)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("failed to stat archive: %w", err)
	}

	f, err := os.Open(archive)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	key := BackupKey(ts)
	if err := s.store.Upload(ctx, key, f); err != nil {
		return BackupInfo{}, fmt.Errorf("failed to upload backup: %w", err)
	}

	info := BackupInfo{Key: key, Timestamp: ts, SizeBytes: stat.Size()}
	s.bus.Emit("reliability", &events.BackupCompletedData{Key: key, SizeBytes: info.SizeBytes})

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("key", key).
		Int64("size_bytes", info.SizeBytes).
		Msg("History backup completed")

	return info, nil
}

// ListBackups returns stored backups newest first.
// Objects whose key does not carry a backup timestamp are ignored.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, backupPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	now := s.now()
	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasPrefix(obj.Key, backupPrefix) || !strings.HasSuffix(obj.Key, backupSuffix) {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(obj.Key, backupPrefix), backupSuffix)
		ts, err := time.Parse(backupTimeLayout, raw)
		if err != nil {
			s.log.Warn().Str("key", obj.Key).Msg("Failed to parse timestamp from backup key")
			continue
		}
		backups = append(backups, BackupInfo{
			Key:       obj.Key,
			Timestamp: ts,
			SizeBytes: obj.SizeBytes,
			AgeHours:  int64(now.Sub(ts).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RotateOldBackups deletes backups older than retentionDays.
// The newest three are always kept; retentionDays of 0 keeps everything.
func (s *BackupService) RotateOldBackups(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= minBackupsToKeep {
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, backup := range backups[minBackupsToKeep:] {
		if !backup.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, backup.Key); err != nil {
			s.log.Error().Err(err).Str("key", backup.Key).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")
	return deleted, nil
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}
