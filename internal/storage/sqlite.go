package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"alarmbot/internal/alarm"
	logx "alarmbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the SQLite store at cfg.Path, applying pragmas and the
// embedded schema.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Maintain truncates the WAL and refreshes the query planner stats.
// Called periodically by the maintenance service.
func (s *sqliteStore) Maintain(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	return nil
}

const alarmColumns = "owner, hour, minute, message, repeat, created_at"

func scanAlarm(rows *sql.Rows) (alarm.Alarm, error) {
	var (
		a       alarm.Alarm
		repeat  sql.NullString
		created string
	)
	if err := rows.Scan(&a.Owner, &a.Time.Hour, &a.Time.Minute, &a.Message, &repeat, &created); err != nil {
		return alarm.Alarm{}, err
	}
	if repeat.Valid {
		days, err := decodeRepeat(repeat.String)
		if err != nil {
			return alarm.Alarm{}, err
		}
		a.Repeat = days
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		a.CreatedAt = t
	}
	return a, nil
}

func (s *sqliteStore) queryAlarms(ctx context.Context, query string, args ...any) ([]alarm.Alarm, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alarm.Alarm
	for rows.Next() {
		a, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *sqliteStore) LoadAll(ctx context.Context) ([]alarm.Alarm, error) {
	return s.queryAlarms(ctx,
		`SELECT `+alarmColumns+` FROM alarms ORDER BY owner, hour, minute, id`)
}

func (s *sqliteStore) ListForOwner(ctx context.Context, owner int64) ([]alarm.Alarm, error) {
	return s.queryAlarms(ctx,
		`SELECT `+alarmColumns+` FROM alarms WHERE owner = ? ORDER BY hour, minute, id`, owner)
}

func (s *sqliteStore) UpsertOneShot(ctx context.Context, owner int64, tod alarm.TimeOfDay, message string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// One one-shot slot per owner: drop all existing one-shot rows first.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM alarms WHERE owner = ? AND repeat IS NULL`, owner); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO alarms(owner, hour, minute, message, repeat, created_at) VALUES(?,?,?,?,NULL,?)`,
		owner, tod.Hour, tod.Minute, message, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) UpsertRecurring(ctx context.Context, owner int64, tod alarm.TimeOfDay, repeat alarm.Weekdays, message string) error {
	if len(repeat) == 0 {
		return alarm.ErrBadWeekdays
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// One recurring slot per (owner, time-of-day).
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM alarms WHERE owner = ? AND hour = ? AND minute = ? AND repeat IS NOT NULL`,
		owner, tod.Hour, tod.Minute); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO alarms(owner, hour, minute, message, repeat, created_at) VALUES(?,?,?,?,?,?)`,
		owner, tod.Hour, tod.Minute, message, encodeRepeat(repeat),
		time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) DeleteOneShot(ctx context.Context, owner int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM alarms WHERE owner = ? AND repeat IS NULL`, owner)
	return err
}

func (s *sqliteStore) DeleteAll(ctx context.Context, owner int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM alarms WHERE owner = ?`, owner)
	return err
}

func (s *sqliteStore) Timezone(ctx context.Context, owner int64) (string, error) {
	var zone string
	err := s.db.QueryRowContext(ctx,
		`SELECT zone FROM timezones WHERE owner = ?`, owner).Scan(&zone)
	if errors.Is(err, sql.ErrNoRows) {
		return "UTC", nil
	}
	if err != nil {
		return "", err
	}
	return zone, nil
}

func (s *sqliteStore) SetTimezone(ctx context.Context, owner int64, zone string) error {
	loc, err := alarm.ValidateZone(zone)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO timezones(owner, zone) VALUES(?,?)
		 ON CONFLICT(owner) DO UPDATE SET zone=excluded.zone`,
		owner, loc.String())
	return err
}

func encodeRepeat(days alarm.Weekdays) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

func decodeRepeat(s string) (alarm.Weekdays, error) {
	days, err := alarm.ParseWeekdays(s)
	if err != nil {
		return nil, fmt.Errorf("corrupt repeat column %q: %w", s, err)
	}
	return days, nil
}
