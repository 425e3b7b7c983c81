package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chaosorch.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewSQLiteStoreRejectsEmptyPath(t *testing.T) {
	_, err := NewSQLiteStore("")
	assert.Error(t, err)
}

func TestCreateAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &RunReport{ID: "run-1", PlanName: "smoke", Status: RunStatusRunning, StartedAt: time.Now()}
	require.NoError(t, s.CreateRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "smoke", got.PlanName)
	assert.Equal(t, RunStatusRunning, got.Status)
}

func TestGetRunMissingReturnsError(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	assert.Error(t, err)
}

func TestUpdateRunStatusStampsCompletedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run := &RunReport{ID: "run-2", PlanName: "smoke", Status: RunStatusRunning, StartedAt: time.Now()}
	require.NoError(t, s.CreateRun(ctx, run))

	require.NoError(t, s.UpdateRunStatus(ctx, "run-2", RunStatusCompleted, nil))

	got, err := s.GetRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestUpdateRunStatusMissingReturnsError(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateRunStatus(context.Background(), "nope", RunStatusCompleted, nil)
	assert.Error(t, err)
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	older := &RunReport{ID: "run-older", PlanName: "a", Status: RunStatusCompleted, StartedAt: time.Now().Add(-time.Hour)}
	newer := &RunReport{ID: "run-newer", PlanName: "b", Status: RunStatusCompleted, StartedAt: time.Now()}
	require.NoError(t, s.CreateRun(ctx, older))
	require.NoError(t, s.CreateRun(ctx, newer))

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-newer", runs[0].ID)
}

func TestCreateAndListActionReports(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run := &RunReport{ID: "run-3", PlanName: "smoke", Status: RunStatusRunning, StartedAt: time.Now()}
	require.NoError(t, s.CreateRun(ctx, run))

	report := &ActionReport{RunID: "run-3", ActionName: "crash", Host: "10.0.0.1", Status: ActionStatusRunning, StartedAt: time.Now()}
	require.NoError(t, s.CreateActionReport(ctx, report))
	assert.NotZero(t, report.ID)

	require.NoError(t, s.UpdateActionReport(ctx, report.ID, ActionStatusSucceeded, nil))

	reports, err := s.ListActionsByRun(ctx, "run-3")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, ActionStatusSucceeded, reports[0].Status)
}

func TestUpdateActionReportMissingReturnsError(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateActionReport(context.Background(), 999, ActionStatusFailed, nil)
	assert.Error(t, err)
}
