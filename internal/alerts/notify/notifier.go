package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	alertapp "andon-cloud/internal/alerts/application"
	alerts "andon-cloud/internal/alerts/domain"
)

const eventEscalated = "escalated"

// Clock provides time for scheduling.
type Clock interface {
	Now() time.Time
}

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier renders alert events and delivers them through a channel.
// Delivery runs in the background so callers holding locks never wait on the network.
type Notifier struct {
	channel        Channel
	template       *Template
	line           string
	escalation     time.Duration
	clock          Clock
	logger         *log.Logger
	mu             sync.Mutex
	timer          *time.Timer
	generation     uint64
	sent           map[string]sendRecord
	cooldown       time.Duration
	dedupeWindow   time.Duration
	requestTimeout time.Duration
	inflight       sync.WaitGroup
}

// Option configures the notifier.
type Option func(*Notifier)

// WithEscalation re-sends an alert that is still unacknowledged after the delay.
func WithEscalation(after time.Duration) Option {
	return func(n *Notifier) {
		if after > 0 {
			n.escalation = after
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithRequestTimeout bounds each delivery.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// WithCooldown sets a minimum interval between notifications of the same event type.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// WithLine names the production line in notifications.
func WithLine(line string) Option {
	return func(n *Notifier) {
		n.line = line
	}
}

// WithLogger reports delivery failures.
func WithLogger(logger *log.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// NewNotifier constructs an alert notifier.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("alert notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		channel:        channel,
		template:       template,
		line:           "line",
		clock:          systemClock{},
		sent:           make(map[string]sendRecord),
		requestTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify implements AlertNotifier.
func (n *Notifier) Notify(_ context.Context, event alertapp.AlertEvent) {
	if n == nil || n.channel == nil {
		return
	}
	n.dispatch(event.Type, event.State)

	switch alerts.Transition(event.Type) {
	case alerts.TransitionTriggered, alerts.TransitionRefreshed:
		n.scheduleEscalation(event.State)
	case alerts.TransitionAcknowledged, alerts.TransitionExpired:
		n.cancelEscalation()
	}
}

// Wait blocks until in-flight deliveries finish.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.inflight.Wait()
}

// Close stops the pending escalation timer and waits for deliveries.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.cancelEscalation()
	n.inflight.Wait()
}

func (n *Notifier) dispatch(eventType string, state alerts.State) {
	content, err := n.template.Render(buildTemplateData(eventType, state, n.line))
	if err != nil {
		return
	}
	if !n.reserve(eventType, content) {
		return
	}
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.requestTimeout)
		defer cancel()
		if err := n.channel.Send(ctx, content); err != nil {
			n.release(eventType)
			if n.logger != nil {
				n.logger.Printf("alert notify error: event=%s err=%v", eventType, err)
			}
		}
	}()
}

func (n *Notifier) scheduleEscalation(state alerts.State) {
	if n.escalation <= 0 || !state.Active() {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.generation++
	generation := n.generation
	n.timer = time.AfterFunc(n.escalation, func() {
		n.runEscalation(generation, state)
	})
}

func (n *Notifier) cancelEscalation() {
	n.mu.Lock()
	timer := n.timer
	n.timer = nil
	n.generation++
	n.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

// runEscalation ignores a timer that was replaced or cancelled after it fired.
func (n *Notifier) runEscalation(generation uint64, state alerts.State) {
	n.mu.Lock()
	if generation != n.generation {
		n.mu.Unlock()
		return
	}
	n.timer = nil
	n.mu.Unlock()
	if !n.clock.Now().Before(state.ExpiresAt) {
		return
	}
	n.dispatch(eventEscalated, state)
}

func buildTemplateData(eventType string, state alerts.State, line string) TemplateData {
	operator := state.Operator
	if operator == "" {
		operator = "unknown"
	}
	reason := state.Reason
	if reason == "" {
		reason = "-"
	}
	return TemplateData{
		Line:        line,
		Reason:      reason,
		Operator:    operator,
		TriggeredAt: formatTime(state.TriggeredAt),
		ExpiresAt:   formatTime(state.ExpiresAt),
		Status:      string(state.Phase),
		Suggestion:  suggestionFor(eventType),
		Event:       eventType,
		EventLabel:  eventLabel(eventType),
	}
}

func eventLabel(event string) string {
	switch event {
	case string(alerts.TransitionTriggered):
		return "Triggered"
	case string(alerts.TransitionRefreshed):
		return "Refreshed"
	case string(alerts.TransitionAcknowledged):
		return "Acknowledged"
	case string(alerts.TransitionExpired):
		return "Expired"
	case eventEscalated:
		return "Escalated"
	default:
		return event
	}
}

func suggestionFor(event string) string {
	switch strings.TrimSpace(event) {
	case string(alerts.TransitionTriggered), string(alerts.TransitionRefreshed):
		return "Stop the line area and send a safety lead to the station."
	case eventEscalated:
		return "Alert still unacknowledged; notify the shift supervisor."
	default:
		return "No action required."
	}
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.RFC3339)
}

// reserve records the send up front so concurrent events see it; release undoes a failed send.
func (n *Notifier) reserve(eventType, content string) bool {
	now := n.clock.Now().UTC()
	hash := hashContent(content)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cooldown > 0 || n.dedupeWindow > 0 {
		if record, ok := n.sent[eventType]; ok {
			if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
				return false
			}
			if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
				return false
			}
		}
	}
	n.sent[eventType] = sendRecord{at: now, hash: hash}
	return true
}

func (n *Notifier) release(eventType string) {
	n.mu.Lock()
	delete(n.sent, eventType)
	n.mu.Unlock()
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
