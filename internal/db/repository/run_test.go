package repository

import (
	"context"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "idsync/internal/db"
	"idsync/internal/domain"
)

func setupRunRepo(t *testing.T) (*RunRepo, *domain.ConnectedSystem) {
	t.Helper()
	writeDB, _ := internaldb.OpenTestSQLite(t)
	sys, _ := seedSystem(t, writeDB, "hr")
	return NewRunRepo(writeDB), sys
}

func TestRunRepo_CreateAndFinish(t *testing.T) {
	repo, sys := setupRunRepo(t)
	ctx := context.Background()

	run, err := repo.CreateRun(ctx, &domain.SyncRun{
		ConnectedSystemID: sys.ID,
		RunType:           domain.RunFullImport,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, domain.RunStatusRunning, run.Status)
	assert.False(t, run.StartedAt.IsZero())

	now := time.Now().UTC()
	run.Status = domain.RunStatusCompleted
	run.FinishedAt = &now
	run.ObjectsProcessed = 12
	run.ErrorCount = 2
	require.NoError(t, repo.FinishRun(ctx, run))

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
	assert.Equal(t, 12, got.ObjectsProcessed)
	assert.Equal(t, 2, got.ErrorCount)
	assert.NotNil(t, got.FinishedAt)
}

func TestRunRepo_LastCompleted(t *testing.T) {
	repo, sys := setupRunRepo(t)
	ctx := context.Background()

	// No completed run yet: nil, nil signals a first run.
	last, err := repo.LastCompleted(ctx, sys.ID, domain.RunDeltaImport)
	require.NoError(t, err)
	assert.Nil(t, last)

	finish := func(runType domain.RunType, started time.Time, status domain.RunStatus) *domain.SyncRun {
		t.Helper()
		run, err := repo.CreateRun(ctx, &domain.SyncRun{
			ConnectedSystemID: sys.ID,
			RunType:           runType,
			StartedAt:         started,
		})
		require.NoError(t, err)
		done := started.Add(time.Minute)
		run.Status = status
		run.FinishedAt = &done
		require.NoError(t, repo.FinishRun(ctx, run))
		return run
	}

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	finish(domain.RunDeltaImport, base, domain.RunStatusCompleted)
	newest := finish(domain.RunDeltaImport, base.Add(time.Hour), domain.RunStatusCompleted)
	// Failed runs never move the watermark.
	finish(domain.RunDeltaImport, base.Add(2*time.Hour), domain.RunStatusFailed)
	// Other run types don't count either.
	finish(domain.RunFullImport, base.Add(3*time.Hour), domain.RunStatusCompleted)

	last, err = repo.LastCompleted(ctx, sys.ID, domain.RunDeltaImport)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, newest.ID, last.ID)
}

func TestRunRepo_ListRuns(t *testing.T) {
	repo, sys := setupRunRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := repo.CreateRun(ctx, &domain.SyncRun{
			ConnectedSystemID: sys.ID,
			RunType:           domain.RunFullSync,
			StartedAt:         base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	runs, total, err := repo.ListRuns(ctx, sys.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, runs, 2)
	// Newest first.
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))
}

func TestRunRepo_Items(t *testing.T) {
	repo, sys := setupRunRepo(t)
	ctx := context.Background()

	run, err := repo.CreateRun(ctx, &domain.SyncRun{
		ConnectedSystemID: sys.ID,
		RunType:           domain.RunFullImport,
	})
	require.NoError(t, err)

	errType := domain.ErrInvalidAttributeValue
	require.NoError(t, repo.AddItem(ctx, &domain.RunItem{
		RunID:         run.ID,
		ObjectID:      "cso-1",
		ObjectType:    "person",
		ErrorType:     &errType,
		AttributeName: "hireDate",
		Message:       `invalid datetime "not-a-date"`,
	}))
	require.NoError(t, repo.AddItem(ctx, &domain.RunItem{
		RunID:      run.ID,
		ObjectID:   "cso-2",
		ObjectType: "person",
	}))

	items, err := repo.ListItems(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.NotNil(t, items[0].ErrorType)
	assert.Equal(t, domain.ErrInvalidAttributeValue, *items[0].ErrorType)
	assert.Equal(t, "hireDate", items[0].AttributeName)
	assert.Nil(t, items[1].ErrorType)
}

func TestRunRepo_GetRun_NotFound(t *testing.T) {
	repo, _ := setupRunRepo(t)

	_, err := repo.GetRun(context.Background(), "missing")
	require.Error(t, err)
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
