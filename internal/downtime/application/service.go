package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	alertapp "andon-cloud/internal/alerts/application"
	alerts "andon-cloud/internal/alerts/domain"
	downtime "andon-cloud/internal/downtime/domain"
	"andon-cloud/internal/observability/metrics"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// LogEventInput carries a submitted stoppage.
type LogEventInput struct {
	OperatorName    string
	ReasonCode      string
	DurationMinutes int
	Timestamp       time.Time
}

// ExportRow is one tabular export line in log order.
type ExportRow struct {
	Timestamp       time.Time `json:"timestamp"`
	ReasonCode      string    `json:"reason"`
	OperatorName    string    `json:"name"`
	DurationMinutes int       `json:"stopped_time"`
}

// Service exposes the andon operations to the presentation layer.
type Service struct {
	events downtime.EventLog
	alerts *alertapp.Service
	clock  Clock
	logger *log.Logger

	catalogMu sync.RWMutex
	catalog   map[string]struct{}

	ingestMu sync.Mutex
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

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

// WithReasonCatalog restricts accepted reason codes. An empty catalog accepts any reason.
func WithReasonCatalog(reasons []string) ServiceOption {
	return func(s *Service) {
		s.catalog = alerts.ReasonSet(reasons...)
	}
}

// NewService constructs the andon service.
func NewService(events downtime.EventLog, alertService *alertapp.Service, opts ...ServiceOption) (*Service, error) {
	if events == nil {
		return nil, downtime.ErrNilLog
	}
	if alertService == nil {
		return nil, errors.New("andon: nil alert service")
	}
	service := &Service{
		events: events,
		alerts: alertService,
		clock:  systemClock{},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// SetReasonCatalog swaps the accepted reason codes.
func (s *Service) SetReasonCatalog(reasons []string) {
	s.catalogMu.Lock()
	s.catalog = alerts.ReasonSet(reasons...)
	s.catalogMu.Unlock()
}

// Reasons returns the configured catalog sorted, or nil for an open set.
func (s *Service) Reasons() []string {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()
	if len(s.catalog) == 0 {
		return nil
	}
	reasons := make([]string, 0, len(s.catalog))
	for reason := range s.catalog {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	return reasons
}

// LogEvent validates and appends a stoppage, then advances the alert.
// Nothing is mutated when validation or the append fails.
func (s *Service) LogEvent(ctx context.Context, input LogEventInput) (alerts.State, error) {
	start := time.Now()
	at := input.Timestamp
	if at.IsZero() {
		at = s.clock.Now()
	}
	event, err := downtime.NewDowntimeEvent(input.OperatorName, input.ReasonCode, input.DurationMinutes, at)
	if err != nil {
		metrics.ObserveEventLogged(metrics.ResultError, s.metricReason(input.ReasonCode), input.DurationMinutes, time.Since(start))
		return alerts.State{}, err
	}
	if err := s.checkReason(event.ReasonCode); err != nil {
		metrics.ObserveEventLogged(metrics.ResultError, s.metricReason(event.ReasonCode), event.DurationMinutes, time.Since(start))
		return alerts.State{}, err
	}

	// Log order and alert order must agree.
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()
	if err := s.events.Append(ctx, event); err != nil {
		metrics.ObserveEventLogged(metrics.ResultError, s.metricReason(event.ReasonCode), event.DurationMinutes, time.Since(start))
		return alerts.State{}, asStorageError(err)
	}
	metrics.ObserveEventLogged(metrics.ResultSuccess, s.metricReason(event.ReasonCode), event.DurationMinutes, time.Since(start))
	s.logf("andon logged: id=%s reason=%s minutes=%d operator=%q", event.ID, event.ReasonCode, event.DurationMinutes, event.OperatorName)

	if _, err := s.alerts.OnEvent(ctx, alerts.Trigger{
		Reason:   event.ReasonCode,
		Operator: event.OperatorName,
		At:       event.Timestamp,
	}); err != nil {
		s.logf("andon alert persistence warning: %v", err)
	}
	// A non-trigger event leaves the machine untouched, so expiry is applied here.
	state, err := s.alerts.Current(ctx, s.clock.Now())
	if err != nil {
		s.logf("andon alert persistence warning: %v", err)
	}
	return state, nil
}

// GetSummary aggregates the whole log against the given shift length.
// When the log is corrupted the summary of an empty log is returned together
// with an error wrapping downtime.ErrCorruption.
func (s *Service) GetSummary(ctx context.Context, shiftDurationMinutes int) (downtime.Summary, error) {
	start := time.Now()
	shift := downtime.ShiftConfig{ShiftDurationMinutes: shiftDurationMinutes}
	if err := shift.Validate(); err != nil {
		metrics.ObserveSummary(metrics.ResultError, time.Since(start))
		return downtime.Summary{}, err
	}

	events, readErr := s.events.ReadAll(ctx)
	if readErr != nil {
		if !errors.Is(readErr, downtime.ErrCorruption) {
			metrics.ObserveSummary(metrics.ResultError, time.Since(start))
			return downtime.Summary{}, asStorageError(readErr)
		}
		metrics.IncLogCorruption()
		s.logf("andon summary: event log corrupted, summarizing empty log: %v", readErr)
		events = nil
	}

	summary, err := downtime.Summarize(events, shift)
	if err != nil {
		metrics.ObserveSummary(metrics.ResultError, time.Since(start))
		return downtime.Summary{}, err
	}
	metrics.ObserveSummary(metrics.ResultSuccess, time.Since(start))
	return summary, readErr
}

// GetAlertState returns the alert at now. A non-nil error only reports a
// persistence failure; the returned state is still authoritative.
func (s *Service) GetAlertState(ctx context.Context, now time.Time) (alerts.State, error) {
	if now.IsZero() {
		now = s.clock.Now()
	}
	return s.alerts.Current(ctx, now)
}

// AcknowledgeAlert dismisses the alert and always returns the idle state.
func (s *Service) AcknowledgeAlert(ctx context.Context) (alerts.State, error) {
	return s.alerts.Acknowledge(ctx)
}

// ExportRows returns log entries in log order for tabular exports.
func (s *Service) ExportRows(ctx context.Context) ([]ExportRow, error) {
	events, err := s.Events(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]ExportRow, 0, len(events))
	for _, event := range events {
		rows = append(rows, ExportRow{
			Timestamp:       event.Timestamp,
			ReasonCode:      event.ReasonCode,
			OperatorName:    event.OperatorName,
			DurationMinutes: event.DurationMinutes,
		})
	}
	return rows, nil
}

// Events returns the raw log in order.
func (s *Service) Events(ctx context.Context) ([]downtime.DowntimeEvent, error) {
	events, err := s.events.ReadAll(ctx)
	if err != nil {
		if errors.Is(err, downtime.ErrCorruption) {
			metrics.IncLogCorruption()
			return nil, err
		}
		return nil, asStorageError(err)
	}
	return events, nil
}

// Reset truncates the event log when the store supports it.
func (s *Service) Reset(ctx context.Context) error {
	resetter, ok := s.events.(downtime.Resetter)
	if !ok {
		return fmt.Errorf("%w: event log does not support reset", downtime.ErrStorage)
	}
	if err := resetter.Reset(ctx); err != nil {
		return asStorageError(err)
	}
	s.logf("andon log reset")
	return nil
}

func (s *Service) checkReason(reason string) error {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()
	if len(s.catalog) == 0 {
		return nil
	}
	if _, ok := s.catalog[reason]; !ok {
		return fmt.Errorf("%w: unknown reason code %q", downtime.ErrValidation, reason)
	}
	return nil
}

// metricReason keeps the reason label bounded to catalog and trigger reasons.
func (s *Service) metricReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ""
	}
	s.catalogMu.RLock()
	_, known := s.catalog[reason]
	s.catalogMu.RUnlock()
	if known || s.alerts.IsTrigger(reason) {
		return reason
	}
	return metrics.ReasonOther
}

func (s *Service) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func asStorageError(err error) error {
	if err == nil || errors.Is(err, downtime.ErrStorage) || errors.Is(err, downtime.ErrCorruption) {
		return err
	}
	return fmt.Errorf("%w: %v", downtime.ErrStorage, err)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
