package downtime

import "fmt"

// ShiftConfig is the window against which stoppage percentages are computed.
type ShiftConfig struct {
	ShiftDurationMinutes int
}

// Validate rejects non-positive shift lengths.
func (c ShiftConfig) Validate() error {
	if c.ShiftDurationMinutes <= 0 {
		return fmt.Errorf("%w: shift duration must be positive, got %d", ErrConfig, c.ShiftDurationMinutes)
	}
	return nil
}
