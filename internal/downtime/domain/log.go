package downtime

import "context"

// EventLog is the append-only store the engine reads from.
// Append must be linearizable and leave the log unchanged on failure.
type EventLog interface {
	Append(ctx context.Context, event DowntimeEvent) error
	ReadAll(ctx context.Context) ([]DowntimeEvent, error)
}

// Resetter is implemented by logs that support truncation.
type Resetter interface {
	Reset(ctx context.Context) error
}
