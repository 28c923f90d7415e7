package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"visabulletin/internal/compare"
)

// Comparison is a stored diff between a run and the run before it.
type Comparison struct {
	ID            int64
	RunID         int64
	PreviousRunID int64
	ComparedAt    time.Time
	HasChanges    bool
	Result        compare.Result
}

// InsertComparison records the diff of runID against previousRunID.
func (s Store) InsertComparison(ctx context.Context, runID, previousRunID int64, result compare.Result) (int64, error) {
	encoded, err := json.Marshal(result)
	if err != nil {
		return 0, s.broken("insert comparison", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.broken("insert comparison", err)
	}
	defer tx.Rollback()

	id, err := nextID(ctx, tx, "comparisons", s.time.Now())
	if err != nil {
		return 0, s.broken("insert comparison", err)
	}

	comparedAt := result.ComparedAt
	if comparedAt.IsZero() {
		comparedAt = s.time.Now()
	}
	var previous sql.NullInt64
	if previousRunID != 0 {
		previous = sql.NullInt64{Int64: previousRunID, Valid: true}
	}

	_, err = tx.ExecContext(
		ctx,
		`insert into comparisons (id, run_id, previous_run_id, compared_at, has_changes, diff_json)
		values (?, ?, ?, ?, ?, ?)`,
		id, runID, previous, formatTime(comparedAt), result.HasChanges(), string(encoded),
	)
	if err != nil {
		return 0, s.broken("insert comparison", err)
	}
	err = tx.Commit()
	if err != nil {
		return 0, s.broken("insert comparison", err)
	}

	s.tel.ReportDebug("inserted comparison", id, runID, previousRunID)
	return id, nil
}

// ComparisonForRun returns the latest comparison recorded for a run.
func (s Store) ComparisonForRun(ctx context.Context, runID int64) (Comparison, error) {
	var (
		c          Comparison
		previous   sql.NullInt64
		comparedAt string
		diff       string
	)
	err := s.db.QueryRowContext(
		ctx,
		`select id, run_id, previous_run_id, compared_at, has_changes, diff_json
		from comparisons where run_id = ?
		order by id desc limit 1`,
		runID,
	).Scan(&c.ID, &c.RunID, &previous, &comparedAt, &c.HasChanges, &diff)
	if errors.Is(err, sql.ErrNoRows) {
		return Comparison{}, ErrNotFound
	}
	if err != nil {
		return Comparison{}, s.broken("comparison for run", err)
	}

	c.PreviousRunID = previous.Int64
	c.ComparedAt, err = parseTime(comparedAt)
	if err != nil {
		return Comparison{}, s.broken("comparison for run", err)
	}
	err = json.Unmarshal([]byte(diff), &c.Result)
	if err != nil {
		return Comparison{}, s.broken("comparison for run", err)
	}
	return c, nil
}
