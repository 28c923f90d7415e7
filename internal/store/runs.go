package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"visabulletin/internal/bulletin"
)

type RunType string

const (
	RUN_OFFICIAL  RunType = "official"
	RUN_TEST      RunType = "test"
	RUN_BENCHMARK RunType = "benchmark"
	RUN_MANUAL    RunType = "manual"
)

var RunTypes = []RunType{RUN_OFFICIAL, RUN_TEST, RUN_BENCHMARK, RUN_MANUAL}

func ParseRunType(s string) (RunType, error) {
	for _, t := range RunTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown run type %q", s)
}

// Run is one fetch and extraction attempt.
type Run struct {
	ID              int64
	Type            RunType
	StartedAt       time.Time
	CompletedAt     time.Time
	Success         bool
	BulletinDate    string
	SourceURL       string
	ErrorMessage    string
	CategoriesCount int
	// Snapshot is nil for failed runs and for runs returned by ListRuns.
	Snapshot *bulletin.Snapshot
}

// InsertRun records a run and returns its id, the id field of the given run
// is ignored. BulletinDate and CategoriesCount are taken from the snapshot when
// there is one.
func (s Store) InsertRun(ctx context.Context, run Run) (int64, error) {
	if run.Type == "" {
		run.Type = RUN_OFFICIAL
	}

	var data sql.NullString
	var count sql.NullInt64
	if run.Snapshot != nil {
		encoded, err := json.Marshal(run.Snapshot)
		if err != nil {
			return 0, s.broken("insert run", err)
		}
		data = sql.NullString{String: string(encoded), Valid: true}
		count = sql.NullInt64{Int64: int64(len(run.Snapshot.Categories)), Valid: true}
		run.BulletinDate = run.Snapshot.BulletinDate
		if run.SourceURL == "" {
			run.SourceURL = run.Snapshot.SourceURL
		}
	}

	var completedAt sql.NullString
	if !run.CompletedAt.IsZero() {
		completedAt = sql.NullString{String: formatTime(run.CompletedAt), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.broken("insert run", err)
	}
	defer tx.Rollback()

	id, err := nextID(ctx, tx, "runs", s.time.Now())
	if err != nil {
		return 0, s.broken("insert run", err)
	}
	_, err = tx.ExecContext(
		ctx,
		`insert into runs (
			id, run_type, started_at, completed_at, success,
			bulletin_date, source_url, data_json, error_message, categories_count
		) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		string(run.Type),
		formatTime(run.StartedAt),
		completedAt,
		run.Success,
		nullString(run.BulletinDate),
		nullString(run.SourceURL),
		data,
		nullString(run.ErrorMessage),
		count,
	)
	if err != nil {
		return 0, s.broken("insert run", err)
	}
	err = tx.Commit()
	if err != nil {
		return 0, s.broken("insert run", err)
	}

	s.tel.ReportDebug("inserted run", id, run.Type, run.Success)
	return id, nil
}

const runColumns = `id, run_type, started_at, completed_at, success,
	bulletin_date, source_url, error_message, categories_count`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner, data *sql.NullString) (Run, error) {
	var (
		run          Run
		runType      string
		startedAt    string
		completedAt  sql.NullString
		bulletinDate sql.NullString
		sourceURL    sql.NullString
		errorMessage sql.NullString
		count        sql.NullInt64
	)
	dest := []any{
		&run.ID, &runType, &startedAt, &completedAt, &run.Success,
		&bulletinDate, &sourceURL, &errorMessage, &count,
	}
	if data != nil {
		dest = append(dest, data)
	}
	err := row.Scan(dest...)
	if err != nil {
		return Run{}, err
	}

	run.Type = RunType(runType)
	run.BulletinDate = bulletinDate.String
	run.SourceURL = sourceURL.String
	run.ErrorMessage = errorMessage.String
	run.CategoriesCount = int(count.Int64)
	run.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return Run{}, err
	}
	run.CompletedAt, err = parseNullTime(completedAt)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s Store) scanRunWithSnapshot(row *sql.Row) (Run, error) {
	var data sql.NullString
	run, err := scanRun(row, &data)
	if err != nil {
		return Run{}, err
	}
	if data.Valid && data.String != "" {
		var snapshot bulletin.Snapshot
		err = json.Unmarshal([]byte(data.String), &snapshot)
		if err != nil {
			// a run whose payload no longer decodes is still listed, just without data
			s.tel.ReportWarning(report_store_decode, run.ID, err)
			return run, nil
		}
		run.Snapshot = &snapshot
	}
	return run, nil
}

// GetRun returns a run together with its snapshot.
func (s Store) GetRun(ctx context.Context, id int64) (Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		"select "+runColumns+", data_json from runs where id = ?",
		id,
	)
	run, err := s.scanRunWithSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, s.broken("get run", err)
	}
	return run, nil
}

// LastSuccessfulRun returns the most recent successful run of a type with its
// snapshot. A non-zero excludeID skips that run.
func (s Store) LastSuccessfulRun(ctx context.Context, runType RunType, excludeID int64) (Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		"select "+runColumns+`, data_json from runs
		where run_type = ? and success = 1 and id != ?
		order by started_at desc, id desc
		limit 1`,
		string(runType), excludeID,
	)
	run, err := s.scanRunWithSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, s.broken("last successful run", err)
	}
	return run, nil
}

type RunFilter struct {
	// Type is empty to list every run type.
	Type        RunType
	Limit       int
	SuccessOnly bool
}

// ListRuns lists runs newest first, without their snapshots.
func (s Store) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	var conditions []string
	var args []any
	if filter.Type != "" {
		conditions = append(conditions, "run_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.SuccessOnly {
		conditions = append(conditions, "success = 1")
	}
	where := ""
	if len(conditions) > 0 {
		where = "where " + strings.Join(conditions, " and ")
	}
	args = append(args, filter.Limit)

	rows, err := s.db.QueryContext(
		ctx,
		"select "+runColumns+" from runs "+where+" order by started_at desc, id desc limit ?",
		args...,
	)
	if err != nil {
		return nil, s.broken("list runs", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows, nil)
		if err != nil {
			return nil, s.broken("list runs", err)
		}
		runs = append(runs, run)
	}
	err = rows.Err()
	if err != nil {
		return nil, s.broken("list runs", err)
	}
	return runs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
