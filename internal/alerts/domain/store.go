package alerts

import (
	"context"
	"errors"
)

// ErrNilMachine is returned when a service is built without a machine.
var ErrNilMachine = errors.New("alerts: nil machine")

// StateStore persists the alert snapshot across restarts.
// Load returns the idle state when nothing has been saved yet.
type StateStore interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}
