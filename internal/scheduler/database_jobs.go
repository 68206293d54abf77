package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/tao-sentinel/internal/database"
	"github.com/rs/zerolog"
)

// CheckDatabasesJob runs an integrity check on every sqlite database.
type CheckDatabasesJob struct {
	databases []*database.DB
	log       zerolog.Logger
}

// NewCheckDatabasesJob creates a new CheckDatabasesJob
func NewCheckDatabasesJob(databases []*database.DB, log zerolog.Logger) *CheckDatabasesJob {
	return &CheckDatabasesJob{
		databases: databases,
		log:       log.With().Str("job", "check_databases").Logger(),
	}
}

// Name returns the job name
func (j *CheckDatabasesJob) Name() string {
	return "check_databases"
}

// Run checks each database and returns every failure joined.
func (j *CheckDatabasesJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var errs []error
	for _, db := range j.databases {
		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("Database health check failed")
			errs = append(errs, err)
			continue
		}
		j.log.Debug().Str("database", db.Name()).Msg("Database healthy")
	}
	return errors.Join(errs...)
}

// WALCheckpointJob truncates the WAL of every sqlite database.
type WALCheckpointJob struct {
	databases []*database.DB
	log       zerolog.Logger
}

// NewWALCheckpointJob creates a new WALCheckpointJob
func NewWALCheckpointJob(databases []*database.DB, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		databases: databases,
		log:       log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run checkpoints each database.
func (j *WALCheckpointJob) Run() error {
	checked := 0
	var errs []error
	for _, db := range j.databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
			errs = append(errs, err)
			continue
		}
		checked++
	}
	j.log.Debug().Int("databases", checked).Msg("WAL checkpoints completed")
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d checkpoints failed: %w", len(errs), len(j.databases), errors.Join(errs...))
	}
	return nil
}
