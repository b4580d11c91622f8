package state

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapfuzz/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_InitSchema(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"runs", "findings"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, "table %s", table)
		_ = rows.Close()
	}

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// idempotent
	require.NoError(t, store.InitSchema())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)

	_, err := store.CreateRun(1, "x")
	assert.Error(t, err)
	_, err = store.ListFindings("x")
	assert.Error(t, err)
	assert.Error(t, store.InitSchema())
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name     string
		seed     uint64
		status   RunStatus
		counters RunCounters
		errMsg   string
	}{
		{name: "completed", seed: 42, status: RunStatusCompleted, counters: RunCounters{Statements: 100, Failures: 7}},
		{name: "failed with error", seed: 1, status: RunStatusFailed, errMsg: "connection refused"},
		{name: "seed above int64", seed: math.MaxUint64, status: RunStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)

			run, err := store.CreateRun(tt.seed, "clickhouse")
			require.NoError(t, err)
			assert.NotEmpty(t, run.ID)
			assert.Equal(t, RunStatusRunning, run.Status)

			got, err := store.GetRun(run.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.seed, got.Seed)
			assert.Equal(t, "clickhouse", got.Target)
			assert.Nil(t, got.CompletedAt)
			assert.True(t, run.StartedAt.Equal(got.StartedAt))

			require.NoError(t, store.CompleteRun(run.ID, tt.status, tt.counters, tt.errMsg))

			got, err = store.GetRun(run.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.counters, got.RunCounters)
			assert.Equal(t, tt.errMsg, got.Error)
			require.NotNil(t, got.CompletedAt)
			assert.False(t, got.CompletedAt.Before(got.StartedAt))
		})
	}
}

func TestSQLiteStore_RunNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun("missing")
	assert.ErrorContains(t, err, "run not found")
	assert.ErrorContains(t, store.CompleteRun("missing", RunStatusCompleted, RunCounters{}, ""), "run not found")
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := setupTestStore(t)

	var ids []string
	for seed := uint64(1); seed <= 3; seed++ {
		run, err := store.CreateRun(seed, "clickhouse")
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestSQLiteStore_Findings(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.CreateRun(9, "clickhouse")
	require.NoError(t, err)
	other, err := store.CreateRun(10, "clickhouse")
	require.NoError(t, err)

	late := &Finding{RunID: run.ID, Step: 20, Oracle: "settings", FirstSQL: "SELECT 1", SecondSQL: "SELECT 1",
		FirstDigest: "aa", SecondDigest: "bb", Detail: "-1\n+2"}
	early := &Finding{RunID: run.ID, Step: 5, Oracle: "correctness", FirstSQL: "SELECT count()", SecondSQL: "SELECT sum()"}
	require.NoError(t, store.RecordFinding(late))
	require.NoError(t, store.RecordFinding(early))
	require.NoError(t, store.RecordFinding(&Finding{RunID: other.ID, Step: 1, Oracle: "peer"}))
	assert.NotEmpty(t, late.ID)
	assert.False(t, late.CreatedAt.IsZero())

	findings, err := store.ListFindings(run.ID)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, early.ID, findings[0].ID)
	assert.Equal(t, late.ID, findings[1].ID)
	assert.Equal(t, "-1\n+2", findings[1].Detail)
	assert.Equal(t, "bb", findings[1].SecondDigest)

	none, err := store.ListFindings("missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStore_FindingRequiresRun(t *testing.T) {
	store := setupTestStore(t)
	assert.Error(t, store.RecordFinding(&Finding{RunID: "missing", Oracle: "peer"}))
}

func TestSQLiteStore_FilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	require.NoError(t, store.InitSchema())
	run, err := store.CreateRun(7, "clickhouse")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(path))
	defer reopened.Close()
	require.NoError(t, reopened.InitSchema())

	got, err := reopened.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.Seed)
}
