package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordAndonActivity(t *testing.T) {
	InitWith(prometheus.NewRegistry(), nil, nil)

	ObserveEventLogged(ResultSuccess, "Quality", 30, 5*time.Millisecond)
	ObserveEventLogged(ResultError, "Quality", 30, time.Millisecond)
	IncAlertTransition("triggered")
	IncLogCorruption()

	if got := testutil.ToFloat64(eventsLogged.WithLabelValues(ResultSuccess)); got != 1 {
		t.Fatalf("success count mismatch: got=%v want=1", got)
	}
	if got := testutil.ToFloat64(eventsMinutes.WithLabelValues("Quality")); got != 30 {
		t.Fatalf("failed appends must not count minutes: got=%v want=30", got)
	}
	if got := testutil.ToFloat64(alertTransitions.WithLabelValues("triggered")); got != 1 {
		t.Fatalf("transition count mismatch: got=%v want=1", got)
	}
	if got := testutil.ToFloat64(logCorruptions); got != 1 {
		t.Fatalf("corruption count mismatch: got=%v want=1", got)
	}
}
