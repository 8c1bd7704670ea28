package alerts

import (
	"sync"
	"time"
)

// Transition names a state change produced by the machine.
type Transition string

const (
	TransitionNone         Transition = ""
	TransitionTriggered    Transition = "triggered"
	TransitionRefreshed    Transition = "refreshed"
	TransitionExpired      Transition = "expired"
	TransitionAcknowledged Transition = "acknowledged"
)

// Machine tracks a single auto-expiring safety alert.
// All operations are mutually exclusive; last writer wins.
type Machine struct {
	mu    sync.Mutex
	state State
}

// NewMachine constructs a machine in the idle phase.
func NewMachine() *Machine {
	return &Machine{state: IdleState()}
}

// Restore replaces the current state, e.g. with a persisted snapshot at startup.
func (m *Machine) Restore(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state.Phase != PhaseActive {
		state = IdleState()
	}
	m.state = state
}

// OnEvent raises the alert when the trigger reason is in triggerReasons.
// A qualifying trigger always overwrites an active alert, restarting the window
// from the newest event. Other reasons leave the state unchanged.
func (m *Machine) OnEvent(trigger Trigger, window time.Duration, triggerReasons map[string]struct{}) (State, Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := triggerReasons[trigger.Reason]; !ok {
		return m.state, TransitionNone
	}
	transition := TransitionTriggered
	if m.state.Phase == PhaseActive {
		transition = TransitionRefreshed
	}
	at := trigger.At.UTC()
	m.state = State{
		Phase:       PhaseActive,
		TriggeredAt: at,
		ExpiresAt:   at.Add(window),
		Reason:      trigger.Reason,
		Operator:    trigger.Operator,
	}
	return m.state, transition
}

// CurrentState returns the state at now. An active alert whose window has
// elapsed is moved to idle before returning.
func (m *Machine) CurrentState(now time.Time) (State, Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Expired(now) {
		m.state = IdleState()
		return m.state, TransitionExpired
	}
	return m.state, TransitionNone
}

// Acknowledge dismisses the alert regardless of phase or remaining window.
func (m *Machine) Acknowledge() (State, Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	transition := TransitionNone
	if m.state.Phase == PhaseActive {
		transition = TransitionAcknowledged
	}
	m.state = IdleState()
	return m.state, transition
}

// ReasonSet builds a lookup set from reason codes.
func ReasonSet(reasons ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(reasons))
	for _, reason := range reasons {
		if reason != "" {
			set[reason] = struct{}{}
		}
	}
	return set
}
