package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"andon-cloud/internal/downtime/application"
	downtime "andon-cloud/internal/downtime/domain"
)

const timeLayout = time.RFC3339

// EventsHeader is the column order of every tabular event export.
var EventsHeader = []string{"timestamp", "reason", "operator", "stopped_minutes"}

// BuildEventsCSV renders the log rows as CSV.
func BuildEventsCSV(rows []application.ExportRow) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(EventsHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.Timestamp.UTC().Format(timeLayout),
			row.ReasonCode,
			row.OperatorName,
			strconv.Itoa(row.DurationMinutes),
		}); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildEventsXLSX renders the log rows plus the summary and pareto sheets.
func BuildEventsXLSX(rows []application.ExportRow, summary downtime.Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	eventsSheet := "events"
	summarySheet := "summary"
	paretoSheet := "pareto"
	if err := f.SetSheetName("Sheet1", eventsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(paretoSheet); err != nil {
		return nil, err
	}

	for i, title := range EventsHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(eventsSheet, cell, title)
	}
	for i, row := range rows {
		line := i + 2
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("A%d", line), row.Timestamp.UTC().Format(timeLayout))
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("B%d", line), row.ReasonCode)
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("C%d", line), row.OperatorName)
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("D%d", line), row.DurationMinutes)
	}

	_ = f.SetCellValue(summarySheet, "A1", "Andon Shift Summary")
	_ = f.SetCellValue(summarySheet, "A3", "Shift (min)")
	_ = f.SetCellValue(summarySheet, "B3", summary.ShiftDurationMinutes)
	_ = f.SetCellValue(summarySheet, "A4", "Stopped (min)")
	_ = f.SetCellValue(summarySheet, "B4", summary.TotalDowntimeMinutes)
	_ = f.SetCellValue(summarySheet, "A5", "Stopped (%)")
	_ = f.SetCellValue(summarySheet, "B5", summary.PercentStopped.Float())
	_ = f.SetCellValue(summarySheet, "A6", "Running (%)")
	_ = f.SetCellValue(summarySheet, "B6", summary.PercentRunning.Float())
	_ = f.SetCellValue(summarySheet, "A7", "Events")
	_ = f.SetCellValue(summarySheet, "B7", summary.EventCount)

	_ = f.SetCellValue(paretoSheet, "A1", "reason")
	_ = f.SetCellValue(paretoSheet, "B1", "stopped_minutes")
	_ = f.SetCellValue(paretoSheet, "C1", "cumulative_percent")
	for i, label := range summary.Pareto.Labels {
		line := i + 2
		_ = f.SetCellValue(paretoSheet, fmt.Sprintf("A%d", line), label)
		_ = f.SetCellValue(paretoSheet, fmt.Sprintf("B%d", line), summary.Pareto.Downtime[i])
		_ = f.SetCellValue(paretoSheet, fmt.Sprintf("C%d", line), summary.Pareto.Cumulative[i].Float())
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildSummaryPDF renders a one-page shift report.
func BuildSummaryPDF(summary downtime.Summary, generatedAt time.Time, topN int) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Andon Shift Summary")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(timeLayout)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Shift Length (min): %d", summary.ShiftDurationMinutes))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Stopped (min): %d", summary.TotalDowntimeMinutes))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Stopped: %s%%  Running: %s%%", summary.PercentStopped, summary.PercentRunning))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Events: %d", summary.EventCount))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(80, 6, "Reason", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Stopped (min)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Cumulative %", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for i, total := range summary.TopN(topN) {
		pdf.CellFormat(80, 6, total.Reason, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, strconv.Itoa(total.Minutes), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, summary.Pareto.Cumulative[i].String(), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
