package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"visabulletin/internal/components/assert"
	"visabulletin/internal/components/chrono"
	"visabulletin/internal/components/telemetry"

	"github.com/mazen160/go-random"
	"github.com/pressly/goose/v3"
)

const (
	report_store_query   = "store.query"
	report_store_decode  = "store.decode"
	report_store_migrate = "store.migrate"
)

// ErrNotFound is returned when a run, comparison or subscription does not
// exist.
var ErrNotFound = errors.New("store: not found")

// ErrIDExhausted is returned when more than 999 rows are inserted into the
// same table within one second.
var ErrIDExhausted = errors.New("store: id sequence exhausted for this second")

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies every pending migration. Remote libsql databases use the
// turso dialect, everything else is plain sqlite.
func Migrate(ctx context.Context, db *sql.DB, remote bool) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	dialect := goose.DialectSQLite3
	if remote {
		dialect = goose.DialectTurso
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	_, err = provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// timestamps are stored as fixed width UTC text so they sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseNullTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return parseTime(s.String)
}

// Store keeps the run, comparison and subscription history.
type Store struct {
	db    *sql.DB
	tel   telemetry.API
	time  chrono.API
	token func() (string, error)
}

func New(db *sql.DB, tel telemetry.API, time chrono.API) Store {
	assert.NotNil(db)
	assert.NotNil(tel)
	assert.NotNil(time)
	return Store{
		db:   db,
		tel:  telemetry.NewScopedAPI("store", tel),
		time: time,
		token: func() (string, error) {
			return random.String(32)
		},
	}
}

// Migrate applies pending migrations to the store's database.
func (s Store) Migrate(ctx context.Context, remote bool) error {
	err := Migrate(ctx, s.db, remote)
	if err != nil {
		s.tel.ReportBroken(report_store_migrate, err)
	}
	return err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// nextID returns a time based id of the form YYYYMMDDHHMMSS followed by a
// three digit sequence number within that second.
func nextID(ctx context.Context, q queryer, table string, now time.Time) (int64, error) {
	prefix, err := strconv.ParseInt(now.UTC().Format("20060102150405"), 10, 64)
	if err != nil {
		return 0, err
	}
	low := prefix * 1000
	high := low + 999

	var max sql.NullInt64
	err = q.QueryRowContext(
		ctx,
		"select max(id) from "+table+" where id >= ? and id <= ?",
		low, high,
	).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return low + 1, nil
	}
	seq := max.Int64%1000 + 1
	if seq > 999 {
		return 0, fmt.Errorf("%s: %w", table, ErrIDExhausted)
	}
	return low + seq, nil
}

func (s Store) broken(op string, err error) error {
	err = fmt.Errorf("%s: %w", op, err)
	s.tel.ReportBroken(report_store_query, err)
	return err
}
