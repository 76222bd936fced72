package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shorlab/shorlab/internal/database"
	"github.com/shorlab/shorlab/internal/modules/runs"
	"github.com/shorlab/shorlab/pkg/logger"
)

func TestRetentionJobPrunesOldRuns(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	db, err := database.New(database.Config{
		Path: "file:" + t.Name() + "?mode=memory&cache=shared",
		Name: "runs",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := runs.NewRepository(db, log)
	require.NoError(t, repo.Migrate())

	ctx := context.Background()
	fresh, err := repo.Record(ctx, runs.Run{Modulus: 15, Base: 2, ControlSize: 8, Shots: 64, Status: runs.StatusSucceeded})
	require.NoError(t, err)
	stale, err := repo.Record(ctx, runs.Run{Modulus: 21, Base: 2, ControlSize: 10, Shots: 64, Status: runs.StatusExhausted})
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE runs SET created_at = ? WHERE id = ?`,
		time.Now().Add(-72*time.Hour).Unix(), stale.ID)
	require.NoError(t, err)

	job := NewRetentionJob(repo, db, 24*time.Hour, log)
	assert.Equal(t, "run_retention", job.Name())
	require.NoError(t, job.Run())

	_, err = repo.Get(ctx, fresh.ID)
	assert.NoError(t, err)
	_, err = repo.Get(ctx, stale.ID)
	assert.ErrorIs(t, err, runs.ErrNotFound)
}
