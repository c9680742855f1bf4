package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const timeFormat = time.RFC3339Nano

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, zero CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
// The database file is created with 0600 permissions and its parent directory with 0700.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}

		// Pre-create the file with restrictive permissions if it doesn't exist
		if _, err := os.Stat(path); os.IsNotExist(err) {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
			if err != nil {
				return nil, fmt.Errorf("creating database file: %w", err)
			}
			_ = f.Close()
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		slog.Info("applying migration", "version", i+1)
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Records ---

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Record, error) {
	var r Record
	var data, updatedAt string

	err := s.db.QueryRowContext(ctx, `SELECT key, data, version, updated_at FROM records WHERE key = ?`, key).
		Scan(&r.Key, &data, &r.Version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading record %q: %w", key, err)
	}

	r.Data = []byte(data)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

// Put writes r if its Version matches the stored version (0 = must not exist).
// On success r.Version holds the new version.
func (s *SQLiteStore) Put(ctx context.Context, r *Record) error {
	now := time.Now()
	next := r.Version + 1

	var res sql.Result
	var err error
	if r.Version == 0 {
		res, err = s.db.ExecContext(ctx, `INSERT INTO records (key, data, version, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO NOTHING`,
			r.Key, string(r.Data), next, formatTime(now))
	} else {
		res, err = s.db.ExecContext(ctx, `UPDATE records SET data = ?, version = ?, updated_at = ?
			WHERE key = ? AND version = ?`,
			string(r.Data), next, formatTime(now), r.Key, r.Version)
	}
	if err != nil {
		return fmt.Errorf("writing record %q: %w", r.Key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("writing record %q: %w", r.Key, err)
	}
	if n == 0 {
		return fmt.Errorf("writing record %q at version %d: %w", r.Key, r.Version, ErrVersionConflict)
	}

	r.Version = next
	r.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting record %q: %w", key, err)
	}
	return nil
}

// --- Alarms ---

func (s *SQLiteStore) SaveAlarm(ctx context.Context, a Alarm) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO alarms (label, fire_at) VALUES (?, ?)`,
		a.Label, formatTime(a.FireAt))
	if err != nil {
		return fmt.Errorf("saving alarm %q: %w", a.Label, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteAlarm(ctx context.Context, label string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM alarms WHERE label = ?", label); err != nil {
		return fmt.Errorf("deleting alarm %q: %w", label, err)
	}
	return nil
}

func (s *SQLiteStore) ClearAlarm(ctx context.Context, label string, fireAt time.Time) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM alarms WHERE label = ? AND fire_at = ?", label, formatTime(fireAt)); err != nil {
		return fmt.Errorf("clearing alarm %q: %w", label, err)
	}
	return nil
}

func (s *SQLiteStore) ListAlarms(ctx context.Context) ([]Alarm, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT label, fire_at FROM alarms ORDER BY fire_at ASC")
	if err != nil {
		return nil, fmt.Errorf("listing alarms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var alarms []Alarm
	for rows.Next() {
		var a Alarm
		var fireAt string
		if err := rows.Scan(&a.Label, &fireAt); err != nil {
			return nil, fmt.Errorf("scanning alarm: %w", err)
		}
		a.FireAt = parseTime(fireAt)
		alarms = append(alarms, a)
	}
	return alarms, rows.Err()
}

// --- Helpers ---

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeFormat, s)
	return t
}
