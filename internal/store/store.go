// Package store persists locally managed volunteer events in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"volcal/internal/model"
)

// ErrNotFound is returned when an event ID does not exist.
var ErrNotFound = errors.New("store: event not found")

const dateLayout = "2006-01-02"

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS calendar_event (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		target TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_calendar_event_range ON calendar_event (start_date, end_date);
`

// Store is a SQLite-backed event store. Events are stored at day
// granularity: Start and End are calendar dates, End inclusive.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: database path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("store: create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Save inserts or updates an event and returns the stored version.
// An empty ID gets a fresh UUID and an empty Target defaults to the ID.
func (s *Store) Save(ctx context.Context, e model.CalendarEvent) (model.CalendarEvent, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Target == "" {
		e.Target = e.ID
	}
	e.SourceID = ""
	e.AllDay = true
	e.Start = truncateDay(e.Start)
	e.End = truncateDay(e.End)

	if err := e.Validate(); err != nil {
		return e, err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calendar_event (id, name, start_date, end_date, target, location, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, start_date=excluded.start_date, end_date=excluded.end_date,
		   target=excluded.target, location=excluded.location, description=excluded.description`,
		e.ID, e.Name, e.Start.Format(dateLayout), e.End.Format(dateLayout),
		e.Target, e.Location, e.Description, s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return e, fmt.Errorf("store: save %s: %w", e.ID, err)
	}
	return e, nil
}

const selectColumns = `SELECT id, name, start_date, end_date, target, location, description FROM calendar_event`

// Get returns the event with the given ID or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (model.CalendarEvent, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, ErrNotFound
	}
	return e, err
}

// ListRange returns events whose [start, end] day range overlaps
// [from, to], ordered by start date and then by insertion order.
func (s *Store) ListRange(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE start_date <= ? AND end_date >= ? ORDER BY start_date ASC, seq ASC`,
		to.Format(dateLayout), from.Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("store: list range: %w", err)
	}
	defer rows.Close()

	events := make([]model.CalendarEvent, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Delete removes an event. Deleting a missing ID returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM calendar_event WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (model.CalendarEvent, error) {
	var e model.CalendarEvent
	var startStr, endStr string
	if err := sc.Scan(&e.ID, &e.Name, &startStr, &endStr, &e.Target, &e.Location, &e.Description); err != nil {
		return e, err
	}
	var err error
	if e.Start, err = time.Parse(dateLayout, startStr); err != nil {
		return e, fmt.Errorf("store: event %s start date: %w", e.ID, err)
	}
	if e.End, err = time.Parse(dateLayout, endStr); err != nil {
		return e, fmt.Errorf("store: event %s end date: %w", e.ID, err)
	}
	e.AllDay = true
	return e, nil
}

// truncateDay keeps the calendar date of t as a UTC midnight. Stored
// events are floating dates, independent of the viewer's timezone.
func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
