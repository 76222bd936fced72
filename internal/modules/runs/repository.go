// Package runs persists factorization runs so past samples, decode history,
// and outcomes can be listed and replayed through the API.
package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/shorlab/shorlab/internal/database"
	"github.com/shorlab/shorlab/internal/modules/factor"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("run not found")

// Status is the lifecycle state of a stored run.
type Status string

const (
	// StatusSucceeded means the run produced a factor pair.
	StatusSucceeded Status = "succeeded"
	// StatusExhausted means the attempt budget ran out.
	StatusExhausted Status = "exhausted"
	// StatusFailed means an infrastructure error aborted the run.
	StatusFailed Status = "failed"
)

// Run is one stored factorization run. The attempt history is kept as a
// msgpack blob; everything queryable lives in its own column.
type Run struct {
	ID          string                 `json:"id"`
	Modulus     int64                  `json:"modulus"`
	Base        int64                  `json:"base"`
	ControlSize int                    `json:"control_size"`
	Shots       int                    `json:"shots"`
	Status      Status                 `json:"status"`
	Found       bool                   `json:"found"`
	P           int64                  `json:"p,omitempty"`
	Q           int64                  `json:"q,omitempty"`
	Order       int64                  `json:"order,omitempty"`
	Attempts    int                    `json:"attempts"`
	Error       string                 `json:"error,omitempty"`
	History     []factor.AttemptRecord `json:"history,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Repository stores runs in SQLite.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a run repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "runs").Logger(),
	}
}

// Migrate creates the runs table when it does not exist.
func (r *Repository) Migrate() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id           TEXT PRIMARY KEY,
			modulus      INTEGER NOT NULL,
			base         INTEGER NOT NULL,
			control_size INTEGER NOT NULL,
			shots        INTEGER NOT NULL,
			status       TEXT NOT NULL,
			found        INTEGER NOT NULL DEFAULT 0,
			p            INTEGER NOT NULL DEFAULT 0,
			q            INTEGER NOT NULL DEFAULT 0,
			ord          INTEGER NOT NULL DEFAULT 0,
			attempts     INTEGER NOT NULL DEFAULT 0,
			error        TEXT NOT NULL DEFAULT '',
			history      BLOB,
			created_at   INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
		CREATE INDEX IF NOT EXISTS idx_runs_modulus ON runs(modulus);
	`)
	if err != nil {
		return fmt.Errorf("runs: migrate: %w", err)
	}
	return nil
}

// Record stores the outcome of one factorization run and returns it with a
// fresh id and timestamp.
func (r *Repository) Record(ctx context.Context, run Run) (Run, error) {
	run.ID = uuid.New().String()
	run.CreatedAt = time.Now().UTC()

	history, err := msgpack.Marshal(run.History)
	if err != nil {
		return Run{}, fmt.Errorf("runs: encoding history: %w", err)
	}

	err = database.WithTransaction(r.db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, modulus, base, control_size, shots, status,
				found, p, q, ord, attempts, error, history, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.Modulus, run.Base, run.ControlSize, run.Shots, string(run.Status),
			run.Found, run.P, run.Q, run.Order, run.Attempts, run.Error, history,
			run.CreatedAt.Unix(),
		)
		return err
	})
	if err != nil {
		return Run{}, fmt.Errorf("runs: recording run: %w", err)
	}

	r.log.Debug().Str("id", run.ID).Int64("modulus", run.Modulus).
		Str("status", string(run.Status)).Msg("Recorded run")
	return run, nil
}

// Get returns one run by id.
func (r *Repository) Get(ctx context.Context, id string) (Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, modulus, base, control_size, shots, status,
			found, p, q, ord, attempts, error, history, created_at
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("runs: %w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("runs: loading run %s: %w", id, err)
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT id, modulus, base, control_size, shots, status,
			found, p, q, ord, attempts, error, history, created_at
		FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("runs: listing runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("runs: scanning run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes runs created before the cutoff and reports how
// many rows went away.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("runs: pruning runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("runs: pruning runs: %w", err)
	}
	if n > 0 {
		r.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("Pruned old runs")
	}
	return n, nil
}

func scanRun(scan func(dest ...interface{}) error) (Run, error) {
	var (
		run       Run
		status    string
		history   []byte
		createdAt int64
	)
	err := scan(&run.ID, &run.Modulus, &run.Base, &run.ControlSize, &run.Shots,
		&status, &run.Found, &run.P, &run.Q, &run.Order, &run.Attempts,
		&run.Error, &history, &createdAt)
	if err != nil {
		return Run{}, err
	}
	run.Status = Status(status)
	run.CreatedAt = time.Unix(createdAt, 0).UTC()
	if len(history) > 0 {
		if err := msgpack.Unmarshal(history, &run.History); err != nil {
			return Run{}, fmt.Errorf("decoding history: %w", err)
		}
	}
	return run, nil
}
