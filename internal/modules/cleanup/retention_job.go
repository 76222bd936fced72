// Package cleanup provides data retention and database maintenance jobs.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shorlab/shorlab/internal/database"
	"github.com/shorlab/shorlab/internal/modules/runs"
)

// RetentionJob prunes stored runs past the retention window and keeps the
// runs database compact. Runs daily.
type RetentionJob struct {
	repo      *runs.Repository
	db        *database.DB
	retention time.Duration
	log       zerolog.Logger
}

// NewRetentionJob creates a retention job. A non-positive retention keeps
// runs for 30 days.
func NewRetentionJob(repo *runs.Repository, db *database.DB, retention time.Duration, log zerolog.Logger) *RetentionJob {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &RetentionJob{
		repo:      repo,
		db:        db,
		retention: retention,
		log:       log.With().Str("job", "run_retention").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (j *RetentionJob) Name() string {
	return "run_retention"
}

// Run prunes old runs and checkpoints the WAL file.
func (j *RetentionJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-j.retention)
	deleted, err := j.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("retention: %w", err)
	}

	if err := j.db.WALCheckpoint(""); err != nil {
		j.log.Error().Err(err).Msg("WAL checkpoint failed (non-fatal)")
	}

	j.log.Info().
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("Run retention job completed")
	return nil
}
