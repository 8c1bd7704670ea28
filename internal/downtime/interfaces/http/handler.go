package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	alerts "andon-cloud/internal/alerts/domain"
	"andon-cloud/internal/audit"
	"andon-cloud/internal/auth"
	"andon-cloud/internal/downtime/application"
	downtime "andon-cloud/internal/downtime/domain"
	"andon-cloud/internal/downtime/interfaces/export"
	"andon-cloud/internal/observability/metrics"
	"andon-cloud/internal/settings"
)

const (
	timeLayout    = time.RFC3339
	warningHeader = "X-Andon-Warning"
	maxBodyBytes  = 1 << 16
)

// SettingsSource returns the active line settings.
type SettingsSource interface {
	Current() settings.Settings
}

// RawSource returns the persisted log exactly as stored.
type RawSource interface {
	Raw(ctx context.Context) ([]byte, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Handler serves the andon endpoints.
type Handler struct {
	service  *application.Service
	settings SettingsSource
	audit    audit.Logger
	raw      RawSource
	clock    Clock
	logger   *log.Logger
}

// Option customizes the handler.
type Option func(*Handler)

// WithAudit records acknowledge and reset actions.
func WithAudit(logger audit.Logger) Option {
	return func(h *Handler) {
		h.audit = logger
	}
}

// WithRawSource serves events.json from the stored bytes instead of re-encoding.
func WithRawSource(raw RawSource) Option {
	return func(h *Handler) {
		h.raw = raw
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) Option {
	return func(h *Handler) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service, source SettingsSource, opts ...Option) (*Handler, error) {
	if service == nil {
		return nil, errors.New("andon handler: nil service")
	}
	if source == nil {
		return nil, errors.New("andon handler: nil settings")
	}
	h := &Handler{service: service, settings: source, clock: systemClock{}}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/andon", h.handleAndon)
	mux.HandleFunc("/api/v1/events", h.handleEvents)
	mux.HandleFunc("/api/v1/reasons", h.handleReasons)
	mux.HandleFunc("/api/v1/summary", h.handleSummary)
	mux.HandleFunc("/api/v1/alert", h.handleAlert)
	mux.HandleFunc("/api/v1/alert/ack", h.handleAcknowledge)
	mux.HandleFunc("/api/v1/reset", h.handleReset)
	mux.HandleFunc("/api/v1/exports/", h.handleExport)
}

type andonRequest struct {
	Name        string          `json:"name"`
	Reason      string          `json:"reason"`
	StoppedTime json.RawMessage `json:"stopped_time"`
	Timestamp   string          `json:"timestamp"`
}

type andonResponse struct {
	Status string       `json:"status"`
	Alert  alertPayload `json:"alert"`
}

type alertPayload struct {
	alerts.State
	Active           bool  `json:"active"`
	RemainingSeconds int64 `json:"remaining_seconds"`
}

type reasonsResponse struct {
	Reasons        []string `json:"reasons"`
	Open           bool     `json:"open"`
	TriggerReasons []string `json:"trigger_reasons"`
}

type summaryResponse struct {
	downtime.Summary
	TopReasons []downtime.ReasonTotal `json:"top_reasons"`
	Warning    string                 `json:"warning,omitempty"`
}

func (h *Handler) handleAndon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	input, err := parseAndonInput(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := h.service.LogEvent(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, andonResponse{Status: "logged", Alert: h.alertPayload(state)})
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	events, err := h.service.Events(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []downtime.DowntimeEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleReasons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	reasons := h.service.Reasons()
	resp := reasonsResponse{
		Reasons:        reasons,
		Open:           len(reasons) == 0,
		TriggerReasons: h.settings.Current().TriggerReasons,
	}
	if resp.Reasons == nil {
		resp.Reasons = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	current := h.settings.Current()
	shift, err := parseIntQuery(r, "shift", current.ShiftMinutes)
	if err != nil {
		writeError(w, err)
		return
	}
	top, err := parseIntQuery(r, "top", current.TopReasons)
	if err != nil {
		writeError(w, err)
		return
	}

	summary, err := h.service.GetSummary(r.Context(), shift)
	resp := summaryResponse{}
	if err != nil {
		if !errors.Is(err, downtime.ErrCorruption) {
			writeError(w, err)
			return
		}
		resp.Warning = "event log corrupted; showing empty summary"
		w.Header().Set(warningHeader, "log-corrupted")
	}
	resp.Summary = summary
	resp.TopReasons = summary.TopN(top)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	state, err := h.service.GetAlertState(r.Context(), h.clock.Now())
	if err != nil {
		h.logf("andon alert persistence warning: %v", err)
	}
	writeJSON(w, http.StatusOK, h.alertPayload(state))
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	before, err := h.service.GetAlertState(r.Context(), h.clock.Now())
	if err != nil {
		h.logf("andon alert persistence warning before acknowledge: %v", err)
	}
	state, err := h.service.AcknowledgeAlert(r.Context())
	if err != nil {
		h.logf("andon alert persistence warning: %v", err)
	}
	h.record(r, audit.ActionAlertAcknowledge, "alert", map[string]any{
		"was_active": before.Active(),
		"reason":     before.Reason,
	})
	writeJSON(w, http.StatusOK, h.alertPayload(state))
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	metadata := map[string]any{}
	if events, err := h.service.Events(r.Context()); err != nil {
		h.logf("andon reset: could not count events before reset: %v", err)
		metadata["events_error"] = err.Error()
	} else {
		metadata["events"] = len(events)
	}
	if err := h.service.Reset(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.record(r, audit.ActionLogReset, "event_log", metadata)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/exports/")
	var format string
	switch name {
	case "events.csv":
		format = "csv"
	case "events.xlsx":
		format = "xlsx"
	case "events.json":
		format = "json"
	case "summary.pdf":
		format = "pdf"
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	start := time.Now()
	data, contentType, err := h.buildExport(r, format)
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(start))
		writeError(w, err)
		return
	}
	metrics.ObserveExport(format, metrics.ResultSuccess, time.Since(start))

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(name, h.clock.Now())))
	_, _ = w.Write(data)
}

func (h *Handler) buildExport(r *http.Request, format string) ([]byte, string, error) {
	ctx := r.Context()
	switch format {
	case "csv":
		rows, err := h.service.ExportRows(ctx)
		if err != nil {
			return nil, "", err
		}
		data, err := export.BuildEventsCSV(rows)
		return data, "text/csv; charset=utf-8", err
	case "xlsx":
		rows, err := h.service.ExportRows(ctx)
		if err != nil {
			return nil, "", err
		}
		summary, err := h.service.GetSummary(ctx, h.settings.Current().ShiftMinutes)
		if err != nil {
			return nil, "", err
		}
		data, err := export.BuildEventsXLSX(rows, summary)
		return data, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", err
	case "pdf":
		current := h.settings.Current()
		shift, err := parseIntQuery(r, "shift", current.ShiftMinutes)
		if err != nil {
			return nil, "", err
		}
		summary, err := h.service.GetSummary(ctx, shift)
		if err != nil {
			return nil, "", err
		}
		data, err := export.BuildSummaryPDF(summary, h.clock.Now(), current.TopReasons)
		return data, "application/pdf", err
	default:
		if h.raw != nil {
			data, err := h.raw.Raw(ctx)
			return data, "application/json", err
		}
		events, err := h.service.Events(ctx)
		if err != nil {
			return nil, "", err
		}
		if events == nil {
			events = []downtime.DowntimeEvent{}
		}
		data, err := json.MarshalIndent(events, "", "  ")
		return data, "application/json", err
	}
}

func (h *Handler) alertPayload(state alerts.State) alertPayload {
	return alertPayload{
		State:            state,
		Active:           state.Active(),
		RemainingSeconds: int64(state.Remaining(h.clock.Now()) / time.Second),
	}
}

func (h *Handler) record(r *http.Request, action, resourceType string, metadata map[string]any) {
	if h.audit == nil {
		return
	}
	payload, _ := json.Marshal(metadata)
	entry := audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		Metadata:     payload,
		IP:           clientIP(r),
		UserAgent:    r.UserAgent(),
		CreatedAt:    h.clock.Now(),
	}
	if err := h.audit.Log(r.Context(), entry); err != nil {
		h.logf("andon audit write failed: action=%s err=%v", action, err)
	}
}

func (h *Handler) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}

func parseAndonInput(w http.ResponseWriter, r *http.Request) (application.LogEventInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var (
		req        andonRequest
		rawMinutes string
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return application.LogEventInput{}, fmt.Errorf("%w: read body: %v", downtime.ErrValidation, err)
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return application.LogEventInput{}, fmt.Errorf("%w: invalid json: %v", downtime.ErrValidation, err)
		}
		rawMinutes = strings.Trim(strings.TrimSpace(string(req.StoppedTime)), `"`)
	} else {
		if err := r.ParseForm(); err != nil {
			return application.LogEventInput{}, fmt.Errorf("%w: invalid form: %v", downtime.ErrValidation, err)
		}
		req.Name = r.PostForm.Get("name")
		req.Reason = r.PostForm.Get("reason")
		req.Timestamp = r.PostForm.Get("timestamp")
		rawMinutes = r.PostForm.Get("stopped_time")
	}

	minutes, err := downtime.ParseDurationMinutes(rawMinutes)
	if err != nil {
		return application.LogEventInput{}, err
	}
	input := application.LogEventInput{
		OperatorName:    req.Name,
		ReasonCode:      req.Reason,
		DurationMinutes: minutes,
	}
	if value := strings.TrimSpace(req.Timestamp); value != "" {
		at, err := time.Parse(timeLayout, value)
		if err != nil {
			return application.LogEventInput{}, fmt.Errorf("%w: timestamp must be RFC3339", downtime.ErrValidation)
		}
		input.Timestamp = at
	}
	return input, nil
}

func parseIntQuery(r *http.Request, key string, fallback int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", downtime.ErrValidation, key)
	}
	return parsed, nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, downtime.ErrValidation), errors.Is(err, downtime.ErrConfig):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, downtime.ErrCorruption):
		http.Error(w, "event log corrupted", http.StatusInternalServerError)
	case errors.Is(err, downtime.ErrStorage):
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func exportFilename(name string, now time.Time) string {
	dot := strings.LastIndex(name, ".")
	return name[:dot] + "-" + now.UTC().Format("20060102-150405") + name[dot:]
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
