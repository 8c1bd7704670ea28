package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"andon-cloud/internal/downtime/application"
	downtime "andon-cloud/internal/downtime/domain"
)

func sampleRows() []application.ExportRow {
	t0 := time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC)
	return []application.ExportRow{
		{Timestamp: t0, ReasonCode: "Technical", OperatorName: "Ana", DurationMinutes: 30},
		{Timestamp: t0.Add(time.Hour), ReasonCode: "Quality", OperatorName: "Ben, Jr.", DurationMinutes: 45},
		{Timestamp: t0.Add(2 * time.Hour), ReasonCode: "Technical", OperatorName: "Ana", DurationMinutes: 15},
	}
}

func sampleSummary(t *testing.T) downtime.Summary {
	t.Helper()
	var events []downtime.DowntimeEvent
	for _, row := range sampleRows() {
		event, err := downtime.NewDowntimeEvent(row.OperatorName, row.ReasonCode, row.DurationMinutes, row.Timestamp)
		if err != nil {
			t.Fatalf("event: %v", err)
		}
		events = append(events, event)
	}
	summary, err := downtime.Summarize(events, downtime.ShiftConfig{ShiftDurationMinutes: 480})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	return summary
}

func TestBuildEventsCSV(t *testing.T) {
	data, err := BuildEventsCSV(sampleRows())
	if err != nil {
		t.Fatalf("build csv: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records got=%d want=4", len(records))
	}
	if records[0][0] != "timestamp" || records[0][3] != "stopped_minutes" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[2][2] != "Ben, Jr." || records[2][3] != "45" || records[2][0] != "2026-03-02T07:00:00Z" {
		t.Fatalf("unexpected row: %v", records[2])
	}
}

func TestBuildEventsCSV_EmptyLogHasHeader(t *testing.T) {
	data, err := BuildEventsCSV(nil)
	if err != nil {
		t.Fatalf("build csv: %v", err)
	}
	if string(data) != "timestamp,reason,operator,stopped_minutes\n" {
		t.Fatalf("unexpected csv: %q", data)
	}
}

func TestBuildEventsXLSX(t *testing.T) {
	data, err := BuildEventsXLSX(sampleRows(), sampleSummary(t))
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	reason, _ := f.GetCellValue("events", "B3")
	if reason != "Quality" {
		t.Fatalf("events B3 got=%q want=Quality", reason)
	}
	stopped, _ := f.GetCellValue("summary", "B4")
	if stopped != "90" {
		t.Fatalf("summary B4 got=%q want=90", stopped)
	}
	first, _ := f.GetCellValue("pareto", "A2")
	cumulative, _ := f.GetCellValue("pareto", "C3")
	if first != "Technical" || cumulative != "100" {
		t.Fatalf("pareto got first=%q cumulative=%q", first, cumulative)
	}
}

func TestBuildSummaryPDF(t *testing.T) {
	data, err := BuildSummaryPDF(sampleSummary(t), time.Date(2026, time.March, 2, 14, 0, 0, 0, time.UTC), 3)
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output is not a pdf")
	}
}
