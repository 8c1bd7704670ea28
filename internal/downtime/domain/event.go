package downtime

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxDurationMinutes bounds a single event so summed totals stay exact.
const MaxDurationMinutes = math.MaxInt32

// DowntimeEvent is one logged stoppage. It is immutable once appended to a log.
type DowntimeEvent struct {
	ID              string    `json:"id,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	OperatorName    string    `json:"name"`
	ReasonCode      string    `json:"reason"`
	DurationMinutes int       `json:"stopped_time"`
}

// NewDowntimeEvent validates input and builds an event ready for appending.
func NewDowntimeEvent(operatorName, reasonCode string, durationMinutes int, at time.Time) (DowntimeEvent, error) {
	reasonCode = strings.TrimSpace(reasonCode)
	if reasonCode == "" {
		return DowntimeEvent{}, fmt.Errorf("%w: reason code is required", ErrValidation)
	}
	if err := checkDuration(durationMinutes); err != nil {
		return DowntimeEvent{}, err
	}
	if at.IsZero() {
		return DowntimeEvent{}, fmt.Errorf("%w: timestamp is required", ErrValidation)
	}
	return DowntimeEvent{
		ID:              NewEventID(),
		Timestamp:       at.UTC(),
		OperatorName:    strings.TrimSpace(operatorName),
		ReasonCode:      reasonCode,
		DurationMinutes: durationMinutes,
	}, nil
}

// Validate checks event invariants.
func (e DowntimeEvent) Validate() error {
	if strings.TrimSpace(e.ReasonCode) == "" {
		return fmt.Errorf("%w: reason code is required", ErrValidation)
	}
	return checkDuration(e.DurationMinutes)
}

func checkDuration(minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("%w: duration must be non-negative, got %d", ErrValidation, minutes)
	}
	if minutes > MaxDurationMinutes {
		return fmt.Errorf("%w: duration %d exceeds %d minutes", ErrValidation, minutes, MaxDurationMinutes)
	}
	return nil
}

// ParseDurationMinutes parses a raw duration field. Unparsable, negative or oversized input is rejected.
func ParseDurationMinutes(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: duration is required", ErrValidation)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: duration %q is not a whole number of minutes", ErrValidation, raw)
	}
	if err := checkDuration(value); err != nil {
		return 0, err
	}
	return value, nil
}

// NewEventID generates a random event identifier.
func NewEventID() string {
	return "evt-" + uuid.NewString()
}
