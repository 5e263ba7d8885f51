package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRunNotFound indicates the run row does not exist.
var ErrRunNotFound = errors.New("sync: run not found")

// RunStore persists synchronization run rows. A run is created IN_PROGRESS
// and receives exactly one terminal update; it is never re-opened.
type RunStore interface {
	CreateRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id uuid.UUID) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	LastCompletedAt(ctx context.Context) (time.Time, error)
}

// PGRunStore is the postgres backed run store.
type PGRunStore struct {
	pool *pgxpool.Pool
}

// NewPGRunStore constructs a store.
func NewPGRunStore(pool *pgxpool.Pool) *PGRunStore {
	return &PGRunStore{pool: pool}
}

var _ RunStore = (*PGRunStore)(nil)

// CreateRun opens the run row.
func (s *PGRunStore) CreateRun(ctx context.Context, run Run) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_runs (id, started_at, status, downloaded, saved, error_count, error_message, manual, duration_ms)
		VALUES ($1, $2, $3, 0, 0, 0, '', $4, 0)`,
		run.ID, run.StartedAt, string(run.Status), run.Manual)
	return err
}

// FinishRun writes the single terminal update.
func (s *PGRunStore) FinishRun(ctx context.Context, run Run) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_runs SET finished_at = $2, status = $3, downloaded = $4, saved = $5,
		       error_count = $6, error_message = $7, duration_ms = $8
		WHERE id = $1 AND status = $9`,
		run.ID, run.FinishedAt, string(run.Status), run.Downloaded, run.Saved,
		run.ErrorCount, run.ErrorMessage, run.Duration.Milliseconds(), string(RunInProgress))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun fetches one run.
func (s *PGRunStore) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, started_at, finished_at, status, downloaded, saved, error_count, error_message, manual, duration_ms
		FROM sync_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

// ListRuns returns recent runs, newest first.
func (s *PGRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, started_at, finished_at, status, downloaded, saved, error_count, error_message, manual, duration_ms
		FROM sync_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// LastCompletedAt returns the start time of the most recent completed run, or
// the zero time when none exists. Using the start rather than the finish time
// keeps invoices issued mid-run inside the next window.
func (s *PGRunStore) LastCompletedAt(ctx context.Context) (time.Time, error) {
	var at time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT started_at FROM sync_runs WHERE status = $1 ORDER BY started_at DESC LIMIT 1`,
		string(RunCompleted)).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	return at, err
}

func scanRun(row pgx.Row) (Run, error) {
	var run Run
	var status string
	var durationMS int64
	if err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &status, &run.Downloaded,
		&run.Saved, &run.ErrorCount, &run.ErrorMessage, &run.Manual, &durationMS); err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}
