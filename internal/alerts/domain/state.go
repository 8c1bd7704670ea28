package alerts

import "time"

// Phase is the alert lifecycle phase.
type Phase string

const (
	PhaseIdle   Phase = "idle"
	PhaseActive Phase = "active"
)

// State is the observable alert record. TriggeredAt and ExpiresAt are only
// meaningful while Phase is PhaseActive.
type State struct {
	Phase       Phase     `json:"phase"`
	TriggeredAt time.Time `json:"triggered_at,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Operator    string    `json:"operator,omitempty"`
}

// IdleState returns the initial state.
func IdleState() State {
	return State{Phase: PhaseIdle}
}

// Active reports whether the alert is raised.
func (s State) Active() bool {
	return s.Phase == PhaseActive
}

// Expired reports whether an active alert has reached its expiry at now.
func (s State) Expired(now time.Time) bool {
	return s.Phase == PhaseActive && !now.Before(s.ExpiresAt)
}

// Remaining returns the time left before expiry, or zero when idle.
func (s State) Remaining(now time.Time) time.Duration {
	if s.Phase != PhaseActive {
		return 0
	}
	left := s.ExpiresAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Trigger is the slice of a stoppage event the machine needs.
type Trigger struct {
	Reason   string
	Operator string
	At       time.Time
}
