package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // driver

	"github.com/okian/weekgrid/internal/domain/model"
	"github.com/okian/weekgrid/internal/domain/recurrence"
	"github.com/okian/weekgrid/pkg/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

const savedAtKey = "saved_at"

// SQLiteStore keeps base events in a SQLite table, one row per event.
type SQLiteStore struct {
	db     *sql.DB
	logger logger.Logger
}

// OpenSQLite opens the database at path and runs migrations.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(opts)

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection keeps :memory: databases shared and writes serialized
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	o.logger.Info(ctx, "sqlite store ready", logger.String("path", path))
	return &SQLiteStore{db: db, logger: o.logger}, nil
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Name() string { return BackendSQLite }

// Close releases the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Load(ctx context.Context) (store *recurrence.WeekStore, err error) {
	start := time.Now()
	defer func() {
		if !errors.Is(err, ErrNotFound) {
			observe(ctx, s.logger, BackendSQLite, "load", start, err)
		}
	}()

	var savedAt string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, savedAtKey).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, title, hour, duration, color_r, color_g, color_b,
		       description, locked, repeat_count, repeat_forever
		FROM events ORDER BY date, hour`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r       Record
			c       model.Color
			locked  int
			forever int
		)
		if err := rows.Scan(&r.ID, &r.Date, &r.Title, &r.Hour, &r.Duration, &c.R, &c.G, &c.B,
			&r.Description, &locked, &r.RepeatCount, &forever); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		r.Color = &c
		r.Locked = locked != 0
		r.RepeatForever = forever != 0
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return FromRecords(records)
}

// Save replaces every row in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, store *recurrence.WeekStore) (err error) {
	start := time.Now()
	defer func() { observe(ctx, s.logger, BackendSQLite, "save", start, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (id, date, title, hour, duration, color_r, color_g, color_b,
		                    description, locked, repeat_count, repeat_forever)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range Records(store) {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Date, r.Title, r.Hour, r.Duration,
			r.Color.R, r.Color.G, r.Color.B, r.Description,
			boolInt(r.Locked), r.RepeatCount, boolInt(r.RepeatForever)); err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		savedAtKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
