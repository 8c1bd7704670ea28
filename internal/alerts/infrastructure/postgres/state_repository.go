package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	alerts "andon-cloud/internal/alerts/domain"
)

const defaultAlertStateTable = "andon_alert_state"

// StateRepository stores the single alert snapshot row.
type StateRepository struct {
	db    *sql.DB
	table string
}

// NewStateRepository constructs a repository.
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db, table: defaultAlertStateTable}
}

// Load fetches the alert snapshot, or the idle state when none is stored.
func (r *StateRepository) Load(ctx context.Context) (alerts.State, error) {
	if r == nil || r.db == nil {
		return alerts.State{}, errors.New("alert state repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT phase, triggered_at, expires_at, reason, operator_name
FROM andon_alert_state
WHERE id = 1`)

	var (
		state       alerts.State
		phase       string
		triggeredAt sql.NullTime
		expiresAt   sql.NullTime
	)
	if err := row.Scan(&phase, &triggeredAt, &expiresAt, &state.Reason, &state.Operator); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return alerts.IdleState(), nil
		}
		return alerts.State{}, err
	}
	if alerts.Phase(phase) != alerts.PhaseActive || !triggeredAt.Valid || !expiresAt.Valid {
		return alerts.IdleState(), nil
	}
	state.Phase = alerts.PhaseActive
	state.TriggeredAt = triggeredAt.Time.UTC()
	state.ExpiresAt = expiresAt.Time.UTC()
	return state, nil
}

// Save upserts the alert snapshot.
func (r *StateRepository) Save(ctx context.Context, state alerts.State) error {
	if r == nil || r.db == nil {
		return errors.New("alert state repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO andon_alert_state (
	id, phase, triggered_at, expires_at, reason, operator_name, updated_at
) VALUES (
	1, $1, $2, $3, $4, $5, $6
)
ON CONFLICT (id)
DO UPDATE SET
	phase = EXCLUDED.phase,
	triggered_at = EXCLUDED.triggered_at,
	expires_at = EXCLUDED.expires_at,
	reason = EXCLUDED.reason,
	operator_name = EXCLUDED.operator_name,
	updated_at = EXCLUDED.updated_at`,
		string(state.Phase),
		nullTime(state.TriggeredAt),
		nullTime(state.ExpiresAt),
		state.Reason,
		state.Operator,
		time.Now().UTC(),
	)
	return err
}

func nullTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value.UTC(), Valid: true}
}
