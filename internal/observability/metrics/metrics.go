package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "andon_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	eventsLogged  *prometheus.CounterVec
	eventsMinutes *prometheus.CounterVec
	logLatency    *prometheus.HistogramVec

	summaryTotal   *prometheus.CounterVec
	summaryLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	alertTransitions *prometheus.CounterVec
	logCorruptions   prometheus.Counter
	settingsReloads  *prometheus.CounterVec
)

// Init registers metrics on the default registry. db may be nil.
func Init(db *sql.DB, logger *log.Logger) {
	InitWith(prometheus.DefaultRegisterer, db, logger)
}

// InitWith registers metrics on reg. Only the first call has any effect.
func InitWith(reg prometheus.Registerer, db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		eventsLogged = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_logged_total",
				Help: "Total andon events submitted by result",
			},
			[]string{"result"},
		)
		eventsMinutes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "downtime_minutes_total",
				Help: "Total logged downtime minutes by reason",
			},
			[]string{"reason"},
		)
		logLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "event_log_latency_seconds",
				Help:    "Event log append latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		summaryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "summary_total",
				Help: "Total summary computations by result",
			},
			[]string{"result"},
		)
		summaryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "summary_latency_seconds",
				Help:    "Summary computation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		alertTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_transitions_total",
				Help: "Total safety alert transitions by type",
			},
			[]string{"transition"},
		)
		logCorruptions = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "event_log_corruptions_total",
				Help: "Total reads that found an unparsable event log",
			},
		)
		settingsReloads = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settings_reloads_total",
				Help: "Total settings reloads by result",
			},
			[]string{"result"},
		)

		reg.MustRegister(
			eventsLogged,
			eventsMinutes,
			logLatency,
			summaryTotal,
			summaryLatency,
			exportTotal,
			exportLatency,
			alertTransitions,
			logCorruptions,
			settingsReloads,
		)

		if db != nil {
			registerDBMetrics(reg, db, logger)
		}
	})
}

// ObserveEventLogged records an append attempt.
func ObserveEventLogged(result, reason string, minutes int, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if eventsLogged != nil {
		eventsLogged.WithLabelValues(result).Inc()
	}
	if logLatency != nil {
		logLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if result == resultSuccess && eventsMinutes != nil && minutes > 0 {
		if reason == "" {
			reason = "unknown"
		}
		eventsMinutes.WithLabelValues(reason).Add(float64(minutes))
	}
}

// ObserveSummary records summary latency and result.
func ObserveSummary(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if summaryTotal != nil {
		summaryTotal.WithLabelValues(result).Inc()
	}
	if summaryLatency != nil {
		summaryLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncAlertTransition increments alert lifecycle counters.
func IncAlertTransition(transition string) {
	if transition == "" {
		transition = "unknown"
	}
	if alertTransitions != nil {
		alertTransitions.WithLabelValues(transition).Inc()
	}
}

// IncLogCorruption counts a corrupted log read.
func IncLogCorruption() {
	if logCorruptions != nil {
		logCorruptions.Inc()
	}
}

// IncSettingsReload counts a settings reload attempt.
func IncSettingsReload(result string) {
	if result == "" {
		result = resultSuccess
	}
	if settingsReloads != nil {
		settingsReloads.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	// ReasonOther labels downtime for reasons outside the catalog and trigger set.
	ReasonOther = "other"
)
