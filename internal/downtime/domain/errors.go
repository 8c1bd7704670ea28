package downtime

import "errors"

var (
	// ErrValidation is returned for malformed input (negative or non-numeric duration, missing reason).
	ErrValidation = errors.New("downtime: validation failed")
	// ErrStorage is returned when the event log cannot be written or read.
	ErrStorage = errors.New("downtime: storage failure")
	// ErrCorruption is returned when persisted log content cannot be parsed.
	ErrCorruption = errors.New("downtime: corrupted event log")
	// ErrConfig is returned for a non-positive shift duration.
	ErrConfig = errors.New("downtime: invalid configuration")
	// ErrNilLog is returned when a service is built without an event log.
	ErrNilLog = errors.New("downtime: nil event log")
)
