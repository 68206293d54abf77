package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/tao-sentinel/internal/database"
	testhelpers "github.com/aristath/tao-sentinel/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	panic bool
}

func (j *countingJob) Run() error {
	j.runs.Add(1)
	if j.panic {
		panic("job exploded")
	}
	return j.err
}

func (j *countingJob) Name() string { return j.name }

func TestScheduler_RunsJobsOnSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "tick"}
	require.NoError(t, s.AddJob("@every 1s", job))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("not a schedule", &countingJob{name: "bad"})
	assert.ErrorContains(t, err, "bad")
}

func TestScheduler_RunByName(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "cache_cleanup", err: errors.New("locked")}
	require.NoError(t, s.AddJob("0 */10 * * * *", job))

	assert.ErrorContains(t, s.RunByName("cache_cleanup"), "locked")
	assert.Equal(t, int32(1), job.runs.Load())
	assert.ErrorContains(t, s.RunByName("missing"), "unknown job")
}

func TestScheduler_ExecuteRecoversPanics(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "boom", panic: true}

	assert.NotPanics(t, func() { s.execute(job) })
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestDatabaseJobs(t *testing.T) {
	history := testhelpers.NewTestDB(t, "history")
	cacheDB := testhelpers.NewTestDB(t, "cache")
	dbs := []*database.DB{history, cacheDB}

	check := NewCheckDatabasesJob(dbs, zerolog.Nop())
	assert.Equal(t, "check_databases", check.Name())
	assert.NoError(t, check.Run())

	wal := NewWALCheckpointJob(dbs, zerolog.Nop())
	assert.Equal(t, "wal_checkpoint", wal.Name())
	assert.NoError(t, wal.Run())
}

func TestCheckDatabasesJob_ReportsClosedDatabase(t *testing.T) {
	db := testhelpers.NewTestDB(t, "history")
	require.NoError(t, db.Close())

	err := NewCheckDatabasesJob([]*database.DB{db}, zerolog.Nop()).Run()
	assert.Error(t, err)
}
