package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteRunStore implements RunStore on a SQLite database file.
type SQLiteRunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteRunStore opens (creating if needed) the database at dbPath.
func NewSQLiteRunStore(dbPath string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteRunStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string { return s.dbPath }

// SaveRun stores run and its daily series in one transaction.
func (s *SQLiteRunStore) SaveRun(ctx context.Context, run *Run) error {
	if err := run.Validate(); err != nil {
		return err
	}

	stockNames, err := json.Marshal(run.StockNames)
	if err != nil {
		return fmt.Errorf("failed to marshal stock names: %w", err)
	}
	flowNames, err := json.Marshal(run.FlowNames)
	if err != nil {
		return fmt.Errorf("failed to marshal flow names: %w", err)
	}
	finalCounts, err := json.Marshal(run.FinalCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal final counts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, run.ID).Scan(&exists)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrExists, run.ID)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to check run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, name, variant, seed, horizon, agents, created_at, config, stock_names, flow_names, final_counts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, nullString(run.Name), run.Variant, strconv.FormatUint(run.Seed, 10),
		run.Horizon, run.Agents, run.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullBytes(run.Config), string(stockNames), string(flowNames), string(finalCounts),
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_days (run_id, day, stocks, driver, counts, feedback)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare day insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range run.Days {
		stocks, err := json.Marshal(d.Stocks)
		if err != nil {
			return fmt.Errorf("failed to marshal stocks for day %d: %w", d.Day, err)
		}
		var counts sql.NullString
		if d.Counts != nil {
			data, err := json.Marshal(d.Counts)
			if err != nil {
				return fmt.Errorf("failed to marshal counts for day %d: %w", d.Day, err)
			}
			counts = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, run.ID, d.Day, string(stocks), d.Driver, counts, d.Feedback); err != nil {
			return fmt.Errorf("failed to insert day %d: %w", d.Day, err)
		}
	}

	return tx.Commit()
}

// GetRun loads a run and its daily series.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		run                            Run
		name, config, finalCounts      sql.NullString
		seed, createdAt, stocks, flows string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, variant, seed, horizon, agents, created_at, config, stock_names, flow_names, final_counts
		FROM runs WHERE id = ?`, id).Scan(
		&run.ID, &name, &run.Variant, &seed, &run.Horizon, &run.Agents,
		&createdAt, &config, &stocks, &flows, &finalCounts,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	run.Name = name.String
	if run.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return nil, fmt.Errorf("run %s: bad seed %q: %w", id, seed, err)
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("run %s: bad created_at %q: %w", id, createdAt, err)
	}
	if config.Valid {
		run.Config = json.RawMessage(config.String)
	}
	if err := json.Unmarshal([]byte(stocks), &run.StockNames); err != nil {
		return nil, fmt.Errorf("run %s: bad stock names: %w", id, err)
	}
	if err := json.Unmarshal([]byte(flows), &run.FlowNames); err != nil {
		return nil, fmt.Errorf("run %s: bad flow names: %w", id, err)
	}
	if finalCounts.Valid {
		if err := json.Unmarshal([]byte(finalCounts.String), &run.FinalCounts); err != nil {
			return nil, fmt.Errorf("run %s: bad final counts: %w", id, err)
		}
	}

	days, err := s.getDays(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Days = days
	return &run, nil
}

func (s *SQLiteRunStore) getDays(ctx context.Context, id string) ([]Day, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, stocks, driver, counts, feedback
		FROM run_days WHERE run_id = ? ORDER BY day`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query days: %w", err)
	}
	defer rows.Close()

	var days []Day
	for rows.Next() {
		var (
			d      Day
			stocks string
			counts sql.NullString
		)
		if err := rows.Scan(&d.Day, &stocks, &d.Driver, &counts, &d.Feedback); err != nil {
			return nil, fmt.Errorf("failed to scan day: %w", err)
		}
		if err := json.Unmarshal([]byte(stocks), &d.Stocks); err != nil {
			return nil, fmt.Errorf("day %d: bad stocks: %w", d.Day, err)
		}
		if counts.Valid {
			if err := json.Unmarshal([]byte(counts.String), &d.Counts); err != nil {
				return nil, fmt.Errorf("day %d: bad counts: %w", d.Day, err)
			}
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// ListRuns returns every run, newest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, variant, seed, horizon, agents, created_at FROM runs`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r               RunSummary
			name            sql.NullString
			seed, createdAt string
		)
		if err := rows.Scan(&r.ID, &name, &r.Variant, &seed, &r.Horizon, &r.Agents, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Name = name.String
		if r.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			return nil, fmt.Errorf("run %s: bad seed %q: %w", r.ID, seed, err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("run %s: bad created_at %q: %w", r.ID, createdAt, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortSummaries(out)
	return out, nil
}

// DeleteRun removes a run; its days go with it through the foreign key.
func (s *SQLiteRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
