package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/core-tools/hsu-netstatus/pkg/errors"
	"github.com/core-tools/hsu-netstatus/pkg/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleReport(startedAt time.Time) *report.RunReport {
	r := report.NewRunReport("/tmp/logs")
	r.StartedAt = startedAt
	r.FinishedAt = startedAt.Add(3 * time.Second)
	r.Results = []report.AnalyzerResult{
		{
			Name:        "SpeedToBing",
			Description: "Speed to Bing",
			Command:     "curl -s bing.com",
			LogFile:     "SpeedToBing.log",
			Status:      report.StatusSucceeded,
			PID:         4242,
			StartedAt:   startedAt,
			Duration:    1500 * time.Millisecond,
			LogSize:     2048,
		},
		{
			Name:     "PacketLossToBing",
			LogFile:  "PacketLossToBing.log",
			Command:  "mtr --report bing.com",
			Status:   report.StatusFailed,
			ExitCode: 1,
			Error:    "process: command exited with non-zero status",
		},
		{
			Name:     "dns",
			LogFile:  "dns.log",
			Status:   report.StatusSkipped,
			ExitCode: -1,
		},
	}
	return r
}

func TestStore_RecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	original := sampleReport(started)
	require.NoError(t, store.Record(ctx, original))

	runs, err := store.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	run := runs[0]
	assert.Equal(t, original.ID, run.ID)
	assert.Equal(t, "/tmp/logs", run.LogDir)
	assert.True(t, started.Equal(run.StartedAt))
	assert.Equal(t, 3*time.Second, run.Duration())

	require.Len(t, run.Results, 3)
	assert.Equal(t, "SpeedToBing", run.Results[0].Name)
	assert.Equal(t, report.StatusSucceeded, run.Results[0].Status)
	assert.Equal(t, 4242, run.Results[0].PID)
	assert.Equal(t, 1500*time.Millisecond, run.Results[0].Duration)
	assert.Equal(t, int64(2048), run.Results[0].LogSize)
	assert.True(t, started.Equal(run.Results[0].StartedAt))

	assert.Equal(t, 1, run.Results[1].ExitCode)
	assert.Contains(t, run.Results[1].Error, "non-zero status")
	assert.True(t, run.Results[1].StartedAt.IsZero())

	assert.Equal(t, report.StatusSkipped, run.Results[2].Status)
	assert.Equal(t, 1, run.Succeeded())
	assert.Equal(t, 1, run.Failed())
	assert.Equal(t, 1, run.Skipped())
}

func TestStore_RecentOrderAndLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 4; i++ {
		r := sampleReport(base.Add(time.Duration(i) * time.Hour))
		ids = append(ids, r.ID)
		require.NoError(t, store.Record(ctx, r))
	}

	runs, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[3], runs[0].ID)
	assert.Equal(t, ids[2], runs[1].ID)

	all, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestStore_RecordDuplicate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	r := sampleReport(time.Now())
	require.NoError(t, store.Record(ctx, r))

	err := store.Record(ctx, r)
	require.Error(t, err)
	assert.True(t, errors.IsConflictError(err))
}

func TestStore_RecordNil(t *testing.T) {
	store := openTestStore(t)

	err := store.Record(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestStore_ReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, sampleReport(time.Now())))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	runs, err := reopened.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.Equal(t, path, reopened.Path())
}

func TestStore_RecentRejectsCorruptTimestamps(t *testing.T) {
	tests := []struct {
		name    string
		corrupt string
		message string
	}{
		{
			name:    "run start",
			corrupt: `UPDATE runs SET started_at = 'yesterday'`,
			message: "corrupt run start time",
		},
		{
			name:    "run finish",
			corrupt: `UPDATE runs SET finished_at = '2024-13-45'`,
			message: "corrupt run finish time",
		},
		{
			name:    "analyzer start",
			corrupt: `UPDATE analyzer_results SET started_at = 'not a time' WHERE name = 'SpeedToBing'`,
			message: "corrupt analyzer start time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := openTestStore(t)
			ctx := context.Background()

			r := sampleReport(time.Now())
			require.NoError(t, store.Record(ctx, r))

			_, err := store.db.ExecContext(ctx, tt.corrupt)
			require.NoError(t, err)

			runs, err := store.Recent(ctx, 10)
			require.Error(t, err)
			assert.Nil(t, runs)
			assert.True(t, errors.IsIOError(err))
			assert.Contains(t, err.Error(), tt.message)

			runID, ok := errors.ContextValue(err, "run_id")
			require.True(t, ok)
			assert.Equal(t, r.ID, runID)
		})
	}
}
