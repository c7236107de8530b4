// Package sqlite stores reminders in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chriscow/memora/pkg/ai"
	"github.com/chriscow/memora/pkg/reminder"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Store implements reminder.Store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ai.ErrBackendUnavailable, op, err)
}

func (s *Store) List(ctx context.Context) ([]reminder.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, date, time, repeat, repeat_days FROM reminders ORDER BY created_at, rowid`)
	if err != nil {
		return nil, unavailable("list", err)
	}
	defer rows.Close()

	var out []reminder.Reminder
	for rows.Next() {
		var r reminder.Reminder
		var days string
		if err := rows.Scan(&r.ID, &r.Name, &r.Date, &r.Time, &r.Repeat, &days); err != nil {
			return nil, unavailable("scan", err)
		}
		if days != "" {
			r.RepeatDays = strings.Split(days, ",")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, d reminder.Draft) error {
	if err := d.Validate(); err != nil {
		return err
	}
	r := d.Reminder()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (id, name, date, time, repeat, repeat_days, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), r.Name, r.Date, r.Time, r.Repeat, strings.Join(r.RepeatDays, ","),
		s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return unavailable("create", err)
	}
	return nil
}

// Delete removes the reminder whose ID equals nameOrID, or else the oldest
// one with that exact name.
func (s *Store) Delete(ctx context.Context, nameOrID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, nameOrID)
	if err != nil {
		return unavailable("delete", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	res, err = s.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE rowid = (SELECT rowid FROM reminders WHERE name = ? ORDER BY created_at, rowid LIMIT 1)`,
		nameOrID)
	if err != nil {
		return unavailable("delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete %q: %w", nameOrID, reminder.ErrNotFound)
	}
	return nil
}

var _ reminder.Store = (*Store)(nil)
