package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("qa run not found")

// Run is one row of qa_runs.
type Run struct {
	RunID        string     `json:"runId"`
	Manifest     string     `json:"manifest"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	ItemCount    int        `json:"itemCount"`
	WarningCount int        `json:"warningCount"`
}

// Item is one row of qa_items.
type Item struct {
	RunID        string   `json:"runId"`
	ItemID       string   `json:"itemId"`
	Path         string   `json:"path"`
	RuleIDs      []string `json:"ruleIds"`
	FindingCount int      `json:"findingCount"`
	FixCount     int      `json:"fixCount"`
	Warnings     []string `json:"warnings"`
	Diagnostics  string   `json:"diagnostics,omitempty"`
	DurationMs   int64    `json:"durationMs"`
}

// QARepository reads and writes QA runs.
type QARepository struct {
	db *DB
}

// NewQARepository creates a new QA repository
func NewQARepository(db *DB) *QARepository {
	return &QARepository{db: db}
}

// CreateRun inserts a run row.
func (r *QARepository) CreateRun(ctx context.Context, run *Run) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO qa_runs (run_id, manifest, started_at, item_count, warning_count)
		VALUES (?, ?, ?, ?, ?)
	`,
		run.RunID,
		run.Manifest,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.ItemCount,
		run.WarningCount,
	)
	if err != nil {
		return fmt.Errorf("failed to create qa run: %w", err)
	}
	return nil
}

// FinishRun records the end of a run and its counters.
func (r *QARepository) FinishRun(ctx context.Context, runID string, finishedAt time.Time, items, warnings int) error {
	res, err := r.db.conn.ExecContext(ctx, `
		UPDATE qa_runs SET finished_at = ?, item_count = ?, warning_count = ?
		WHERE run_id = ?
	`, finishedAt.UTC().Format(time.RFC3339Nano), items, warnings, runID)
	if err != nil {
		return fmt.Errorf("failed to finish qa run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// SaveItems inserts the items of one run in a single transaction.
func (r *QARepository) SaveItems(ctx context.Context, items []Item) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO qa_items (
				run_id, item_id, path, rule_ids_json, finding_count, fix_count,
				warnings_json, diagnostics, duration_ms
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare qa item insert: %w", err)
		}
		defer stmt.Close()

		for _, it := range items {
			ruleIDs, err := marshalStrings(it.RuleIDs)
			if err != nil {
				return err
			}
			warnings, err := marshalStrings(it.Warnings)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx,
				it.RunID,
				it.ItemID,
				it.Path,
				ruleIDs,
				it.FindingCount,
				it.FixCount,
				warnings,
				compress([]byte(it.Diagnostics)),
				it.DurationMs,
			); err != nil {
				return fmt.Errorf("failed to insert qa item %s: %w", it.ItemID, err)
			}
		}
		return nil
	})
}

// GetRun returns one run.
func (r *QARepository) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := r.db.conn.QueryRowContext(ctx, `
		SELECT run_id, manifest, started_at, finished_at, item_count, warning_count
		FROM qa_runs WHERE run_id = ?
	`, runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// ListRuns returns the most recent runs first.
func (r *QARepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT run_id, manifest, started_at, finished_at, item_count, warning_count
		FROM qa_runs ORDER BY started_at DESC, run_id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list qa runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListItems returns the items of a run ordered by item id.
func (r *QARepository) ListItems(ctx context.Context, runID string) ([]Item, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT run_id, item_id, path, rule_ids_json, finding_count, fix_count,
			warnings_json, diagnostics, duration_ms
		FROM qa_items WHERE run_id = ? ORDER BY item_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list qa items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var ruleIDs, warnings string
		var diagnostics []byte
		if err := rows.Scan(
			&it.RunID, &it.ItemID, &it.Path, &ruleIDs, &it.FindingCount, &it.FixCount,
			&warnings, &diagnostics, &it.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan qa item: %w", err)
		}
		if err := json.Unmarshal([]byte(ruleIDs), &it.RuleIDs); err != nil {
			return nil, fmt.Errorf("qa item %s: invalid rule ids: %w", it.ItemID, err)
		}
		if err := json.Unmarshal([]byte(warnings), &it.Warnings); err != nil {
			return nil, fmt.Errorf("qa item %s: invalid warnings: %w", it.ItemID, err)
		}
		raw, err := decompress(diagnostics)
		if err != nil {
			return nil, fmt.Errorf("qa item %s: %w", it.ItemID, err)
		}
		it.Diagnostics = string(raw)
		items = append(items, it)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var started string
	var finished sql.NullString
	if err := s.Scan(&run.RunID, &run.Manifest, &started, &finished, &run.ItemCount, &run.WarningCount); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return nil, fmt.Errorf("qa run %s: invalid started_at: %w", run.RunID, err)
	}
	run.StartedAt = t
	if finished.Valid {
		f, err := time.Parse(time.RFC3339Nano, finished.String)
		if err != nil {
			return nil, fmt.Errorf("qa run %s: invalid finished_at: %w", run.RunID, err)
		}
		run.FinishedAt = &f
	}
	return &run, nil
}

func marshalStrings(ss []string) (string, error) {
	if ss == nil {
		ss = []string{}
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}
