package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/sampling-paradigm/internal/constants"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"

	_ "modernc.org/sqlite" // SQLite driver
)

var (
	// ErrNotFound is returned when no run matches an ID or prefix.
	ErrNotFound = errors.New("run not found")

	// ErrAmbiguous is returned when an ID prefix matches more than one run.
	ErrAmbiguous = errors.New("run ID prefix is ambiguous")
)

// Run is one generated schedule together with the parameters that reproduce it.
type Run struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	EVDiff    float64             `json:"ev_diff"`
	NTrials   int                 `json:"n_trials"`
	Cutoff    float64             `json:"cutoff"`
	Seed      uint64              `json:"seed"`
	PerClass  int                 `json:"per_class"`
	Remainder int                 `json:"remainder"`
	PoolSize  int                 `json:"pool_size"`
	Condition constants.Condition `json:"condition"`
	YokedTo   string              `json:"yoked_to,omitempty"`

	// Trials is empty when the run was loaded by ListRuns.
	Trials []payoff.Setting `json:"trials,omitempty"`
}

// SQLiteStore keeps runs in a SQLite database.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the run database in dir.
func Open(dir string) (*SQLiteStore, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	dbPath := filepath.Join(dir, DBFile)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// SaveRun stores run and its trials. A new UUID is assigned when run.ID is
// empty, and CreatedAt is set when zero. Returns the run ID.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Condition == "" {
		run.Condition = constants.ConditionActive
	}
	if !run.Condition.Valid() {
		return "", fmt.Errorf("invalid condition %q", run.Condition)
	}
	if len(run.Trials) != run.NTrials {
		return "", fmt.Errorf("run has %d trials, expected %d", len(run.Trials), run.NTrials)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var yokedTo sql.NullString
	if run.YokedTo != "" {
		yokedTo = sql.NullString{String: run.YokedTo, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, ev_diff, n_trials, cutoff, seed, per_class, remainder, pool_size, condition, yoked_to)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(timeLayout), run.EVDiff, run.NTrials, run.Cutoff,
		strconv.FormatUint(run.Seed, 10), run.PerClass, run.Remainder, run.PoolSize,
		string(run.Condition), yokedTo)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trials (run_id, position, setting_id,
			left_mag1, left_prob1, left_mag2, left_prob2,
			right_mag1, right_prob1, right_mag2, right_prob2)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare trial insert: %w", err)
	}
	defer stmt.Close()

	for pos, t := range run.Trials {
		if _, err := stmt.ExecContext(ctx, run.ID, pos, t.ID,
			t.Left.Mag1, t.Left.Prob1, t.Left.Mag2, t.Left.Prob2,
			t.Right.Mag1, t.Right.Prob1, t.Right.Mag2, t.Right.Prob2); err != nil {
			return "", fmt.Errorf("failed to insert trial %d: %w", pos, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return run.ID, nil
}

// timeLayout has a fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = `id, created_at, ev_diff, n_trials, cutoff, seed, per_class, remainder, pool_size, condition, yoked_to`

// GetRun loads a run with its trials. id may be a unique prefix of the run ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id LIKE ? || '%' LIMIT 2`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, id)
	}
	run := runs[0]

	trials, err := s.loadTrials(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Trials = trials
	return &run, nil
}

// ListRuns returns runs newest first, without trials. limit <= 0 means all.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return scanRuns(rows)
}

// DeleteRun removes a run and its trials.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *SQLiteStore) loadTrials(ctx context.Context, runID string) ([]payoff.Setting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT setting_id,
			left_mag1, left_prob1, left_mag2, left_prob2,
			right_mag1, right_prob1, right_mag2, right_prob2
		FROM trials WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trials: %w", err)
	}
	defer rows.Close()

	var trials []payoff.Setting
	for rows.Next() {
		var t payoff.Setting
		if err := rows.Scan(&t.ID,
			&t.Left.Mag1, &t.Left.Prob1, &t.Left.Mag2, &t.Left.Prob2,
			&t.Right.Mag1, &t.Right.Prob1, &t.Right.Mag2, &t.Right.Prob2); err != nil {
			return nil, fmt.Errorf("failed to scan trial: %w", err)
		}
		trials = append(trials, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trials: %w", err)
	}
	return trials, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r         Run
			createdAt string
			seed      string
			condition string
			yokedTo   sql.NullString
		)
		if err := rows.Scan(&r.ID, &createdAt, &r.EVDiff, &r.NTrials, &r.Cutoff, &seed,
			&r.PerClass, &r.Remainder, &r.PoolSize, &condition, &yokedTo); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		var err error
		if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("run %s: invalid created_at %q: %w", r.ID, createdAt, err)
		}
		if r.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			return nil, fmt.Errorf("run %s: invalid seed %q: %w", r.ID, seed, err)
		}
		r.Condition = constants.Condition(condition)
		r.YokedTo = yokedTo.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}
