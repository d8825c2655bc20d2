package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/pod-fulfillment/internal/fulfillment/runlog"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newRun(orderID string) *runlog.FulfillmentRun {
	return &runlog.FulfillmentRun{
		ID:           uuid.NewString(),
		OrderID:      orderID,
		ProviderName: "printful",
		Status:       runlog.RunInProgress,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	run := newRun("ord-1")
	require.NoError(t, repo.CreateRun(ctx, run))

	base := time.Now().UTC()
	records := []runlog.StepRecord{
		{RunID: run.ID, Seq: 1, Name: runlog.StepValidate, Status: runlog.StepInProgress, At: base},
		{RunID: run.ID, Seq: 1, Name: runlog.StepValidate, Status: runlog.StepCompleted, At: base.Add(5 * time.Millisecond)},
		{RunID: run.ID, Seq: 2, Name: runlog.StepConvert, Status: runlog.StepInProgress, At: base.Add(6 * time.Millisecond)},
		{RunID: run.ID, Seq: 2, Name: runlog.StepConvert, Status: runlog.StepFailed, Error: "boom", At: base.Add(9 * time.Millisecond)},
	}
	for i := range records {
		require.NoError(t, repo.AppendStep(ctx, &records[i]))
	}
	require.NoError(t, repo.SetRunStatus(ctx, run.ID, runlog.RunFailed))

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, runlog.RunFailed, got.Status)
	require.Len(t, got.Steps, 2, "transition records must reduce to one entry per step")

	assert.Equal(t, runlog.StepValidate, got.Steps[0].Name)
	assert.Equal(t, runlog.StepCompleted, got.Steps[0].Status)
	assert.False(t, got.Steps[0].StartedAt.IsZero())
	assert.False(t, got.Steps[0].CompletedAt.IsZero())

	assert.Equal(t, runlog.StepConvert, got.Steps[1].Name)
	assert.Equal(t, runlog.StepFailed, got.Steps[1].Status)
	assert.Equal(t, "boom", got.Steps[1].Error)
}

func TestSetProviderOrderID(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	run := newRun("ord-2")
	require.NoError(t, repo.CreateRun(ctx, run))
	require.NoError(t, repo.SetProviderOrderID(ctx, run.ID, "PF-1001"))

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "PF-1001", got.ProviderOrderID)

	assert.ErrorIs(t, repo.SetProviderOrderID(ctx, "missing", "PF-1"), runlog.ErrRunNotFound)
}

func TestListRunsByOrderNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	first := newRun("ord-3")
	require.NoError(t, repo.CreateRun(ctx, first))

	second := newRun("ord-3")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, repo.CreateRun(ctx, second))

	other := newRun("ord-other")
	require.NoError(t, repo.CreateRun(ctx, other))

	runs, err := repo.ListRunsByOrder(ctx, "ord-3")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)

	latest, err := repo.LatestRunForOrder(ctx, "ord-3")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestGetRunNotFound(t *testing.T) {
	repo := openTestRepo(t)

	_, err := repo.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, runlog.ErrRunNotFound)

	_, err = repo.LatestRunForOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, runlog.ErrRunNotFound)
}

func TestRunSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.db")

	repo, err := Open(path)
	require.NoError(t, err)

	run := newRun("ord-4")
	require.NoError(t, repo.CreateRun(ctx, run))
	require.NoError(t, repo.AppendStep(ctx, &runlog.StepRecord{
		RunID: run.ID, Seq: 1, Name: runlog.StepValidate, Status: runlog.StepInProgress, At: time.Now().UTC(),
	}))
	require.NoError(t, repo.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.OrderID, got.OrderID)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, runlog.StepInProgress, got.Steps[0].Status)
}
