// Package sqlite stores the event log in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	downtime "andon-cloud/internal/downtime/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS downtime_events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	occurred_at TEXT NOT NULL,
	operator_name TEXT NOT NULL DEFAULT '',
	reason_code TEXT NOT NULL,
	duration_minutes INTEGER NOT NULL CHECK (duration_minutes >= 0)
)`

// EventLog stores downtime events in SQLite.
type EventLog struct {
	db *sql.DB
}

// Open opens the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*EventLog, error) {
	if path == "" {
		return nil, errors.New("sqlite event log: empty path")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}
	return &EventLog{db: db}, nil
}

// Close releases the database handle.
func (l *EventLog) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// DB exposes the handle for metrics collectors.
func (l *EventLog) DB() *sql.DB {
	if l == nil {
		return nil
	}
	return l.db
}

// Append inserts one event.
func (l *EventLog) Append(ctx context.Context, event downtime.DowntimeEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	_, err := l.db.ExecContext(ctx, `
INSERT INTO downtime_events (id, occurred_at, operator_name, reason_code, duration_minutes)
VALUES (?, ?, ?, ?, ?)`,
		event.ID,
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		event.OperatorName,
		event.ReasonCode,
		event.DurationMinutes,
	)
	if err != nil {
		return fmt.Errorf("%w: insert event: %v", downtime.ErrStorage, err)
	}
	return nil
}

// ReadAll returns all events in insertion order.
func (l *EventLog) ReadAll(ctx context.Context) ([]downtime.DowntimeEvent, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT id, occurred_at, operator_name, reason_code, duration_minutes
FROM downtime_events
ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: query events: %v", downtime.ErrStorage, err)
	}
	defer rows.Close()

	var events []downtime.DowntimeEvent
	for rows.Next() {
		var (
			event downtime.DowntimeEvent
			at    string
		)
		if err := rows.Scan(&event.ID, &at, &event.OperatorName, &event.ReasonCode, &event.DurationMinutes); err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", downtime.ErrCorruption, err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("%w: event %s timestamp %q", downtime.ErrCorruption, event.ID, at)
		}
		event.Timestamp = parsed.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read events: %v", downtime.ErrStorage, err)
	}
	return events, nil
}

// Reset deletes all events.
func (l *EventLog) Reset(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM downtime_events`); err != nil {
		return fmt.Errorf("%w: reset events: %v", downtime.ErrStorage, err)
	}
	return nil
}
