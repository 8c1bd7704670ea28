package downtime

import (
	"fmt"
	"math"
	"sort"
)

// ReasonTotal is one ranked reason with its summed downtime.
type ReasonTotal struct {
	Reason  string `json:"reason"`
	Minutes int    `json:"minutes"`
}

// ParetoSeries is the ranked breakdown with cumulative contribution.
type ParetoSeries struct {
	Labels     []string  `json:"labels"`
	Downtime   []int     `json:"downtime"`
	Cumulative []Percent `json:"cumulative"`
}

// Summary is derived from the full event log on each call.
type Summary struct {
	TotalDowntimeMinutes int            `json:"total_stopped"`
	ShiftDurationMinutes int            `json:"shift_minutes"`
	PercentStopped       Percent        `json:"percent_stopped"`
	PercentRunning       Percent        `json:"percent_running"`
	ReasonTotals         map[string]int `json:"reason_totals"`
	RankedReasons        []ReasonTotal  `json:"ranked_reasons"`
	Pareto               ParetoSeries   `json:"pareto"`
	EventCount           int            `json:"event_count"`
}

// TopN returns the first n ranked reasons.
func (s Summary) TopN(n int) []ReasonTotal {
	if n <= 0 {
		return []ReasonTotal{}
	}
	if n > len(s.RankedReasons) {
		n = len(s.RankedReasons)
	}
	out := make([]ReasonTotal, n)
	copy(out, s.RankedReasons[:n])
	return out
}

// Summarize aggregates an ordered event sequence against a shift.
// Equal totals rank by first occurrence of the reason in the log.
func Summarize(events []DowntimeEvent, shift ShiftConfig) (Summary, error) {
	if err := shift.Validate(); err != nil {
		return Summary{}, err
	}

	totals := make(map[string]int)
	firstSeen := make(map[string]int)
	order := make([]string, 0)
	var total int64
	for i, event := range events {
		if event.DurationMinutes < 0 || event.DurationMinutes > MaxDurationMinutes {
			return Summary{}, fmt.Errorf("%w: event %d (%s) has out of range duration %d", ErrValidation, i, event.ID, event.DurationMinutes)
		}
		if _, ok := firstSeen[event.ReasonCode]; !ok {
			firstSeen[event.ReasonCode] = i
			order = append(order, event.ReasonCode)
		}
		totals[event.ReasonCode] = int(addMinutes(int64(totals[event.ReasonCode]), int64(event.DurationMinutes), math.MaxInt))
		total = addMinutes(total, int64(event.DurationMinutes), math.MaxInt)
	}

	ranked := make([]ReasonTotal, 0, len(order))
	for _, reason := range order {
		ranked = append(ranked, ReasonTotal{Reason: reason, Minutes: totals[reason]})
	}
	// order is already first-occurrence order, so a stable sort keeps the tie-break.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Minutes > ranked[j].Minutes
	})

	stopped := ratioPercent(total, int64(shift.ShiftDurationMinutes))

	return Summary{
		TotalDowntimeMinutes: int(total),
		ShiftDurationMinutes: shift.ShiftDurationMinutes,
		PercentStopped:       stopped,
		PercentRunning:       percentHundred - stopped,
		ReasonTotals:         totals,
		RankedReasons:        ranked,
		Pareto:               buildPareto(ranked, total),
		EventCount:           len(events),
	}, nil
}

func buildPareto(ranked []ReasonTotal, total int64) ParetoSeries {
	series := ParetoSeries{
		Labels:     make([]string, 0, len(ranked)),
		Downtime:   make([]int, 0, len(ranked)),
		Cumulative: make([]Percent, 0, len(ranked)),
	}
	var running int64
	for i, item := range ranked {
		running = addMinutes(running, int64(item.Minutes), math.MaxInt)
		series.Labels = append(series.Labels, item.Reason)
		series.Downtime = append(series.Downtime, item.Minutes)
		if total == 0 {
			series.Cumulative = append(series.Cumulative, 0)
			continue
		}
		if i == len(ranked)-1 {
			series.Cumulative = append(series.Cumulative, percentHundred)
			continue
		}
		series.Cumulative = append(series.Cumulative, ratioPercent(running, total))
	}
	return series
}

// addMinutes sums non-negative minutes, saturating at limit.
func addMinutes(a, b, limit int64) int64 {
	if b > limit-a {
		return limit
	}
	return a + b
}
