package memory

import (
	"context"
	"sync"

	downtime "andon-cloud/internal/downtime/domain"
)

// EventLog is an in-memory event log for demo/testing.
type EventLog struct {
	mu     sync.RWMutex
	events []downtime.DowntimeEvent
}

// NewEventLog constructs an empty log.
func NewEventLog() *EventLog {
	return &EventLog{}
}

// Append adds an event at the end of the log.
func (l *EventLog) Append(ctx context.Context, event downtime.DowntimeEvent) error {
	_ = ctx
	if err := event.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

// ReadAll returns a copy of the log in append order.
func (l *EventLog) ReadAll(ctx context.Context) ([]downtime.DowntimeEvent, error) {
	_ = ctx
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]downtime.DowntimeEvent, len(l.events))
	copy(out, l.events)
	return out, nil
}

// Reset drops all events.
func (l *EventLog) Reset(ctx context.Context) error {
	_ = ctx
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
	return nil
}
