package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	downtime "andon-cloud/internal/downtime/domain"
)

const defaultEventsTable = "downtime_events"

// EventLog stores downtime events in Postgres. Log order is the serial seq column.
type EventLog struct {
	db    *sql.DB
	table string
}

// NewEventLog constructs a repository.
func NewEventLog(db *sql.DB) *EventLog {
	return &EventLog{db: db, table: defaultEventsTable}
}

// Append inserts one event.
func (r *EventLog) Append(ctx context.Context, event downtime.DowntimeEvent) error {
	if r == nil || r.db == nil {
		return errors.New("downtime event repo: nil db")
	}
	if err := event.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO downtime_events (
	id, occurred_at, operator_name, reason_code, duration_minutes
) VALUES (
	$1, $2, $3, $4, $5
)`,
		event.ID,
		event.Timestamp.UTC(),
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
func (r *EventLog) ReadAll(ctx context.Context) ([]downtime.DowntimeEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("downtime event repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
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
			event    downtime.DowntimeEvent
			operator sql.NullString
		)
		if err := rows.Scan(&event.ID, &event.Timestamp, &operator, &event.ReasonCode, &event.DurationMinutes); err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", downtime.ErrCorruption, err)
		}
		event.Timestamp = event.Timestamp.UTC()
		if operator.Valid {
			event.OperatorName = operator.String
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read events: %v", downtime.ErrStorage, err)
	}
	return events, nil
}

// Reset deletes all events.
func (r *EventLog) Reset(ctx context.Context) error {
	if r == nil || r.db == nil {
		return errors.New("downtime event repo: nil db")
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM downtime_events`); err != nil {
		return fmt.Errorf("%w: reset events: %v", downtime.ErrStorage, err)
	}
	return nil
}
