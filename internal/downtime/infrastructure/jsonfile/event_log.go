// Package jsonfile stores the event log as a single JSON array on disk.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	downtime "andon-cloud/internal/downtime/domain"
)

const DefaultPath = "andon_data.json"

// record is the on-disk shape. stopped_time is accepted both as a number and
// as a numeric string, which is how older logs were written.
type record struct {
	ID          string          `json:"id,omitempty"`
	Timestamp   string          `json:"timestamp"`
	Reason      string          `json:"reason"`
	Name        string          `json:"name"`
	StoppedTime json.RawMessage `json:"stopped_time"`
}

// EventLog persists events to a JSON file. Appends rewrite the file through a
// temporary file and rename so a failed write never leaves a partial log.
type EventLog struct {
	mu   sync.Mutex
	path string
}

// NewEventLog constructs a file-backed log.
func NewEventLog(path string) (*EventLog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("jsonfile: empty path")
	}
	return &EventLog{path: path}, nil
}

// Path returns the backing file path.
func (l *EventLog) Path() string {
	return l.path
}

// Append adds an event at the end of the log.
func (l *EventLog) Append(ctx context.Context, event downtime.DowntimeEvent) error {
	_ = ctx
	if err := event.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return err
	}
	records = append(records, toRecord(event))
	return l.write(records)
}

// ReadAll returns the events in file order.
func (l *EventLog) ReadAll(ctx context.Context) ([]downtime.DowntimeEvent, error) {
	_ = ctx
	l.mu.Lock()
	records, err := l.load()
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	events := make([]downtime.DowntimeEvent, 0, len(records))
	for i, rec := range records {
		event, err := fromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: %s entry %d: %v", downtime.ErrCorruption, l.path, i, err)
		}
		events = append(events, event)
	}
	return events, nil
}

// Reset truncates the log to an empty array.
func (l *EventLog) Reset(ctx context.Context) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write([]record{})
}

// Raw returns the file content, or an empty array when nothing was written yet.
func (l *EventLog) Raw(ctx context.Context) ([]byte, error) {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return []byte("[]"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", downtime.ErrStorage, err)
	}
	return data, nil
}

func (l *EventLog) load() ([]record, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", downtime.ErrStorage, l.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", downtime.ErrCorruption, l.path, err)
	}
	return records, nil
}

func (l *EventLog) write(records []record) error {
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", downtime.ErrStorage, err)
	}
	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".andon-*.json")
	if err != nil {
		return fmt.Errorf("%w: %v", downtime.ErrStorage, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write: %v", downtime.ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: sync: %v", downtime.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close: %v", downtime.ErrStorage, err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename: %v", downtime.ErrStorage, err)
	}
	return nil
}

func toRecord(event downtime.DowntimeEvent) record {
	return record{
		ID:          event.ID,
		Timestamp:   event.Timestamp.UTC().Format(time.RFC3339Nano),
		Reason:      event.ReasonCode,
		Name:        event.OperatorName,
		StoppedTime: json.RawMessage(strconv.Itoa(event.DurationMinutes)),
	}
}

func fromRecord(rec record) (downtime.DowntimeEvent, error) {
	at, err := parseTimestamp(rec.Timestamp)
	if err != nil {
		return downtime.DowntimeEvent{}, err
	}
	minutes, err := parseStoppedTime(rec.StoppedTime)
	if err != nil {
		return downtime.DowntimeEvent{}, err
	}
	event := downtime.DowntimeEvent{
		ID:              rec.ID,
		Timestamp:       at,
		OperatorName:    rec.Name,
		ReasonCode:      rec.Reason,
		DurationMinutes: minutes,
	}
	if err := event.Validate(); err != nil {
		return downtime.DowntimeEvent{}, err
	}
	return event, nil
}

// parseTimestamp accepts RFC3339 and the zone-less ISO layout older logs used.
func parseTimestamp(value string) (time.Time, error) {
	if at, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return at.UTC(), nil
	}
	at, err := time.Parse("2006-01-02T15:04:05.999999", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
	}
	return at.UTC(), nil
}

func parseStoppedTime(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, errors.New("missing stopped_time")
	}
	var number int
	if err := json.Unmarshal(raw, &number); err == nil {
		return number, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, fmt.Errorf("invalid stopped_time %s", raw)
	}
	return downtime.ParseDurationMinutes(text)
}
