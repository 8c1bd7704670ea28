package downtime

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func mustEvent(t *testing.T, reason string, minutes int, at time.Time) DowntimeEvent {
	t.Helper()
	event, err := NewDowntimeEvent("operator", reason, minutes, at)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	return event
}

func TestSummarize_ShiftScenario(t *testing.T) {
	start := time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC)
	events := []DowntimeEvent{
		mustEvent(t, "Technical", 30, start),
		mustEvent(t, "Quality", 45, start.Add(time.Hour)),
		mustEvent(t, "Technical", 15, start.Add(2*time.Hour)),
	}

	summary, err := Summarize(events, ShiftConfig{ShiftDurationMinutes: 480})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.TotalDowntimeMinutes != 90 {
		t.Fatalf("total mismatch: got=%d want=90", summary.TotalDowntimeMinutes)
	}
	if summary.ReasonTotals["Technical"] != 45 || summary.ReasonTotals["Quality"] != 45 {
		t.Fatalf("reason totals mismatch: %v", summary.ReasonTotals)
	}
	if len(summary.RankedReasons) != 2 || summary.RankedReasons[0].Reason != "Technical" || summary.RankedReasons[1].Reason != "Quality" {
		t.Fatalf("ranking mismatch: %v", summary.RankedReasons)
	}
	if summary.PercentStopped.String() != "18.75" {
		t.Fatalf("percent stopped mismatch: got=%s want=18.75", summary.PercentStopped)
	}
	if summary.PercentRunning.String() != "81.25" {
		t.Fatalf("percent running mismatch: got=%s want=81.25", summary.PercentRunning)
	}
	cumulative := summary.Pareto.Cumulative
	if len(cumulative) != 2 || cumulative[0].Float() != 50 || cumulative[1].Float() != 100 {
		t.Fatalf("pareto cumulative mismatch: %v", cumulative)
	}
	if summary.Pareto.Downtime[0] != 45 || summary.Pareto.Labels[1] != "Quality" {
		t.Fatalf("pareto series mismatch: %+v", summary.Pareto)
	}
}

func TestSummarize_RanksByTotalThenFirstOccurrence(t *testing.T) {
	at := time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC)
	events := []DowntimeEvent{
		mustEvent(t, "Material", 10, at),
		mustEvent(t, "Quality", 20, at),
		mustEvent(t, "Technical", 10, at),
		mustEvent(t, "Changeover", 40, at),
		mustEvent(t, "Material", 10, at),
		mustEvent(t, "Technical", 10, at),
	}
	summary, err := Summarize(events, ShiftConfig{ShiftDurationMinutes: 420})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	want := []string{"Changeover", "Material", "Quality", "Technical"}
	if len(summary.RankedReasons) != len(want) {
		t.Fatalf("ranking length mismatch: %v", summary.RankedReasons)
	}
	for i, reason := range want {
		if summary.RankedReasons[i].Reason != reason {
			t.Fatalf("rank %d mismatch: got=%s want=%s (%v)", i, summary.RankedReasons[i].Reason, reason, summary.RankedReasons)
		}
	}
	for i := 1; i < len(summary.RankedReasons); i++ {
		if summary.RankedReasons[i].Minutes > summary.RankedReasons[i-1].Minutes {
			t.Fatalf("ranking not descending: %v", summary.RankedReasons)
		}
	}

	sum := 0
	for _, minutes := range summary.ReasonTotals {
		sum += minutes
	}
	if sum != summary.TotalDowntimeMinutes {
		t.Fatalf("reason totals do not add up: got=%d want=%d", sum, summary.TotalDowntimeMinutes)
	}

	cumulative := summary.Pareto.Cumulative
	for i := 1; i < len(cumulative); i++ {
		if cumulative[i] < cumulative[i-1] {
			t.Fatalf("pareto cumulative decreasing: %v", cumulative)
		}
	}
	if cumulative[len(cumulative)-1].Float() != 100 {
		t.Fatalf("pareto should end at 100, got %s", cumulative[len(cumulative)-1])
	}
}

func TestSummarize_PercentagesAlwaysComplement(t *testing.T) {
	at := time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC)
	shifts := []int{1, 7, 420, 425, 480, 999}
	totals := []int{0, 1, 3, 100, 333, 480, 2000}
	for _, shift := range shifts {
		for _, total := range totals {
			summary, err := Summarize([]DowntimeEvent{mustEvent(t, "Quality", total, at)}, ShiftConfig{ShiftDurationMinutes: shift})
			if err != nil {
				t.Fatalf("summarize: %v", err)
			}
			if summary.PercentStopped+summary.PercentRunning != percentHundred {
				t.Fatalf("percentages do not sum to 100: shift=%d total=%d stopped=%s running=%s", shift, total, summary.PercentStopped, summary.PercentRunning)
			}
			if summary.PercentStopped < 0 || summary.PercentStopped > percentHundred {
				t.Fatalf("percent stopped out of range: %s", summary.PercentStopped)
			}
		}
	}
}

func TestSummarize_ClampsAboveShift(t *testing.T) {
	at := time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC)
	summary, err := Summarize([]DowntimeEvent{mustEvent(t, "Technical", 600, at)}, ShiftConfig{ShiftDurationMinutes: 480})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.PercentStopped.Float() != 100 || summary.PercentRunning.Float() != 0 {
		t.Fatalf("expected clamp to 100/0, got %s/%s", summary.PercentStopped, summary.PercentRunning)
	}
}

func TestSummarize_ZeroDowntime(t *testing.T) {
	at := time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC)
	events := []DowntimeEvent{
		mustEvent(t, "Technical", 0, at),
		mustEvent(t, "Quality", 0, at),
	}
	summary, err := Summarize(events, ShiftConfig{ShiftDurationMinutes: 480})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.PercentStopped != 0 || summary.PercentRunning.Float() != 100 {
		t.Fatalf("expected 0/100, got %s/%s", summary.PercentStopped, summary.PercentRunning)
	}
	for _, value := range summary.Pareto.Cumulative {
		if value != 0 {
			t.Fatalf("expected all-zero cumulative, got %v", summary.Pareto.Cumulative)
		}
	}
	if len(summary.Pareto.Cumulative) != 2 {
		t.Fatalf("expected one pareto entry per reason, got %v", summary.Pareto.Cumulative)
	}
}

func TestSummarize_EmptyLog(t *testing.T) {
	summary, err := Summarize(nil, ShiftConfig{ShiftDurationMinutes: 480})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.TotalDowntimeMinutes != 0 || len(summary.ReasonTotals) != 0 || len(summary.RankedReasons) != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
	if summary.PercentRunning.Float() != 100 {
		t.Fatalf("expected fully running, got %s", summary.PercentRunning)
	}
}

func TestSummarize_RejectsNonPositiveShift(t *testing.T) {
	for _, shift := range []int{0, -480} {
		_, err := Summarize(nil, ShiftConfig{ShiftDurationMinutes: shift})
		if !errors.Is(err, ErrConfig) {
			t.Fatalf("shift %d: expected ErrConfig, got %v", shift, err)
		}
	}
}

func TestSummarize_RejectsNegativeDuration(t *testing.T) {
	events := []DowntimeEvent{{ReasonCode: "Quality", DurationMinutes: -5}}
	_, err := Summarize(events, ShiftConfig{ShiftDurationMinutes: 480})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSummarize_DoesNotMutateInput(t *testing.T) {
	at := time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC)
	events := []DowntimeEvent{
		mustEvent(t, "Quality", 5, at),
		mustEvent(t, "Technical", 50, at),
	}
	before := append([]DowntimeEvent(nil), events...)
	first, err := Summarize(events, ShiftConfig{ShiftDurationMinutes: 480})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	first.ReasonTotals["Quality"] = 999
	second, err := Summarize(events, ShiftConfig{ShiftDurationMinutes: 480})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if second.ReasonTotals["Quality"] != 5 {
		t.Fatalf("summary shares state between calls: %v", second.ReasonTotals)
	}
	for i := range events {
		if events[i] != before[i] {
			t.Fatalf("input mutated at %d: got=%+v want=%+v", i, events[i], before[i])
		}
	}
}

func TestSummary_TopN(t *testing.T) {
	at := time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC)
	summary, err := Summarize([]DowntimeEvent{
		mustEvent(t, "A", 1, at),
		mustEvent(t, "B", 3, at),
		mustEvent(t, "C", 2, at),
	}, ShiftConfig{ShiftDurationMinutes: 60})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	top := summary.TopN(2)
	if len(top) != 2 || top[0].Reason != "B" || top[1].Reason != "C" {
		t.Fatalf("top 2 mismatch: %v", top)
	}
	if len(summary.TopN(10)) != 3 {
		t.Fatalf("top 10 should return all reasons")
	}
	if len(summary.TopN(0)) != 0 {
		t.Fatalf("top 0 should be empty")
	}
}

func TestPercent_JSON(t *testing.T) {
	payload, err := json.Marshal(struct {
		Value Percent `json:"value"`
	}{Value: 1875})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `{"value":18.75}` {
		t.Fatalf("unexpected json: %s", payload)
	}
	var decoded Percent
	if err := json.Unmarshal([]byte("81.25"), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != 8125 {
		t.Fatalf("decoded mismatch: got=%d want=8125", decoded)
	}
}

func TestSummarize_RejectsOversizedDuration(t *testing.T) {
	events := []DowntimeEvent{
		{ReasonCode: "Quality", DurationMinutes: MaxDurationMinutes + 1},
		{ReasonCode: "Quality", DurationMinutes: MaxDurationMinutes + 1},
	}
	_, err := Summarize(events, ShiftConfig{ShiftDurationMinutes: 480})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSummarize_LargeDurationsStayInRange(t *testing.T) {
	at := time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC)
	events := []DowntimeEvent{
		mustEvent(t, "Technical", MaxDurationMinutes, at),
		mustEvent(t, "Quality", MaxDurationMinutes, at),
		mustEvent(t, "Technical", MaxDurationMinutes, at),
	}
	summary, err := Summarize(events, ShiftConfig{ShiftDurationMinutes: 480})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.TotalDowntimeMinutes != 3*MaxDurationMinutes {
		t.Fatalf("unexpected total got=%d want=%d", summary.TotalDowntimeMinutes, 3*MaxDurationMinutes)
	}
	if summary.PercentStopped != percentHundred || summary.PercentRunning != 0 {
		t.Fatalf("expected 100/0, got %s/%s", summary.PercentStopped, summary.PercentRunning)
	}
	want := []Percent{6667, 10000}
	if len(summary.Pareto.Cumulative) != len(want) {
		t.Fatalf("unexpected pareto length got=%d want=%d", len(summary.Pareto.Cumulative), len(want))
	}
	for i, value := range want {
		if summary.Pareto.Cumulative[i] != value {
			t.Fatalf("cumulative[%d] got=%s want=%s", i, summary.Pareto.Cumulative[i], value)
		}
	}
}

func TestSummarize_ParetoEndsAtHundred(t *testing.T) {
	at := time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC)
	events := []DowntimeEvent{
		mustEvent(t, "Technical", 1, at),
		mustEvent(t, "Quality", 1, at),
		mustEvent(t, "Material", 1, at),
	}
	summary, err := Summarize(events, ShiftConfig{ShiftDurationMinutes: 480})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	cumulative := summary.Pareto.Cumulative
	if got := cumulative[len(cumulative)-1]; got != percentHundred {
		t.Fatalf("last cumulative got=%s want=100.00", got)
	}
	for i := 1; i < len(cumulative); i++ {
		if cumulative[i] < cumulative[i-1] {
			t.Fatalf("cumulative not monotonic: %v", cumulative)
		}
	}
}

func TestRatioPercent_WideOperands(t *testing.T) {
	const maxInt64 = int64(^uint64(0) >> 1)
	cases := []struct {
		part, whole int64
		want        Percent
	}{
		{part: 1, whole: 3, want: 3333},
		{part: 2, whole: 3, want: 6667},
		{part: 1, whole: 8, want: 1250},
		{part: 1, whole: 80000, want: 0},
		{part: 1, whole: 20000, want: 1},
		{part: maxInt64 / 2, whole: maxInt64, want: 5000},
		{part: maxInt64 - 1, whole: maxInt64, want: percentHundred},
		{part: maxInt64, whole: 480, want: percentHundred},
		{part: 0, whole: maxInt64, want: 0},
	}
	for _, tc := range cases {
		if got := ratioPercent(tc.part, tc.whole); got != tc.want {
			t.Fatalf("ratioPercent(%d, %d) got=%d want=%d", tc.part, tc.whole, got, tc.want)
		}
	}
}
