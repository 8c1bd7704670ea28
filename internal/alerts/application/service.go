package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	alerts "andon-cloud/internal/alerts/domain"
	"andon-cloud/internal/observability/metrics"
)

// AlertNotifier publishes alert lifecycle events.
type AlertNotifier interface {
	Notify(ctx context.Context, event AlertEvent)
}

// AlertEvent represents a lifecycle update.
type AlertEvent struct {
	Type  string       `json:"type"`
	State alerts.State `json:"state"`
	At    time.Time    `json:"at"`
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Policy configures which reasons raise the alert and for how long.
type Policy struct {
	Window         time.Duration
	TriggerReasons []string
}

// Validate checks policy invariants.
func (p Policy) Validate() error {
	if p.Window <= 0 {
		return errors.New("alerts: window must be positive")
	}
	if len(alerts.ReasonSet(p.TriggerReasons...)) == 0 {
		return errors.New("alerts: trigger reasons required")
	}
	return nil
}

// Service owns the alert machine and keeps its persisted copy and
// subscribers in step with every transition.
type Service struct {
	mu       sync.Mutex
	machine  *alerts.Machine
	store    alerts.StateStore
	notifier AlertNotifier
	clock    Clock
	logger   *log.Logger

	policyMu sync.RWMutex
	window   time.Duration
	reasons  map[string]struct{}
}

// ServiceOption customizes the alert service.
type ServiceOption func(*Service)

// WithNotifier assigns a notifier.
func WithNotifier(notifier AlertNotifier) ServiceOption {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithStore assigns a state store.
func WithStore(store alerts.StateStore) ServiceOption {
	return func(s *Service) {
		s.store = store
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService constructs an alert service. When a store is configured the
// machine is restored from it.
func NewService(ctx context.Context, machine *alerts.Machine, policy Policy, opts ...ServiceOption) (*Service, error) {
	if machine == nil {
		return nil, alerts.ErrNilMachine
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	service := &Service{
		machine: machine,
		clock:   systemClock{},
		window:  policy.Window,
		reasons: alerts.ReasonSet(policy.TriggerReasons...),
	}
	for _, opt := range opts {
		opt(service)
	}
	if service.store != nil {
		state, err := service.store.Load(ctx)
		if err != nil {
			return nil, err
		}
		machine.Restore(state)
	}
	return service, nil
}

// SetPolicy swaps the trigger policy. Existing alerts keep their expiry.
func (s *Service) SetPolicy(policy Policy) error {
	if s == nil {
		return errors.New("alerts: nil service")
	}
	if err := policy.Validate(); err != nil {
		return err
	}
	s.policyMu.Lock()
	s.window = policy.Window
	s.reasons = alerts.ReasonSet(policy.TriggerReasons...)
	s.policyMu.Unlock()
	return nil
}

// IsTrigger reports whether reason raises the alert under the current policy.
func (s *Service) IsTrigger(reason string) bool {
	s.policyMu.RLock()
	defer s.policyMu.RUnlock()
	_, ok := s.reasons[reason]
	return ok
}

// OnEvent advances the machine for a newly logged stoppage. The returned
// state is authoritative; a non-nil error only reports a persistence failure.
func (s *Service) OnEvent(ctx context.Context, trigger alerts.Trigger) (alerts.State, error) {
	if s == nil {
		return alerts.IdleState(), errors.New("alerts: nil service")
	}
	s.policyMu.RLock()
	window, reasons := s.window, s.reasons
	s.policyMu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	state, transition := s.machine.OnEvent(trigger, window, reasons)
	return state, s.afterTransition(ctx, state, transition)
}

// Current returns the alert state at now, applying lazy expiry.
func (s *Service) Current(ctx context.Context, now time.Time) (alerts.State, error) {
	if s == nil {
		return alerts.IdleState(), errors.New("alerts: nil service")
	}
	if now.IsZero() {
		now = s.clock.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state, transition := s.machine.CurrentState(now)
	return state, s.afterTransition(ctx, state, transition)
}

// Acknowledge dismisses the alert. It always returns the idle state.
func (s *Service) Acknowledge(ctx context.Context) (alerts.State, error) {
	if s == nil {
		return alerts.IdleState(), errors.New("alerts: nil service")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state, transition := s.machine.Acknowledge()
	return state, s.afterTransition(ctx, state, transition)
}

func (s *Service) afterTransition(ctx context.Context, state alerts.State, transition alerts.Transition) error {
	if transition == alerts.TransitionNone {
		return nil
	}
	metrics.IncAlertTransition(string(transition))
	if s.logger != nil {
		s.logger.Printf("alert %s: reason=%s expires=%s", transition, state.Reason, formatTime(state.ExpiresAt))
	}
	var err error
	if s.store != nil {
		if err = s.store.Save(ctx, state); err != nil && s.logger != nil {
			s.logger.Printf("alert state save error: %v", err)
		}
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, AlertEvent{Type: string(transition), State: state, At: s.clock.Now().UTC()})
	}
	return err
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.RFC3339)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
