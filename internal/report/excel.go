package report

import (
	"bytes"
	"fmt"
	"time"

	"wisefido-emergency/internal/models"

	"github.com/xuri/excelize/v2"
)

// AlertsHeader 报警明细表头
var AlertsHeader = []string{
	"ID",
	"Type",
	"Level",
	"Status",
	"Title",
	"Message",
	"Created At",
	"Offline",
	"Acknowledged By",
	"Acknowledged At",
	"Escalated To",
	"Escalated At",
	"Resolved At",
}

// ExportXLSX 生成周报 Excel（Summary / Alerts / Falls 三个工作表）
func ExportXLSX(report models.WeeklyReport, alerts []*models.EmergencyAlert, falls []models.FallRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 汇总
	rows := [][]interface{}{
		{"Week Start", report.WeekStart.Format("2006-01-02")},
		{"Safe Zone Exits", report.SafeZoneExits},
		{"Fall Incidents", report.FallIncidents},
	}
	for _, t := range models.AllAlertTypes {
		rows = append(rows, []interface{}{"Alerts: " + string(t), report.AlertsByType[t]})
	}
	for i, row := range rows {
		if err := f.SetSheetRow(summary, cellName(1, i+1), &row); err != nil {
			return nil, fmt.Errorf("failed to write summary row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(summary, "A", "A", 24); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	// 报警明细
	const alertSheet = "Alerts"
	if _, err := f.NewSheet(alertSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writeHeader(f, alertSheet, AlertsHeader, headerStyle); err != nil {
		return nil, err
	}
	for i, a := range alerts {
		row := []interface{}{
			a.ID,
			string(a.Type),
			string(a.Level),
			string(a.Status),
			a.Title,
			a.Message,
			formatTime(&a.Timestamp),
			a.IsOffline,
			a.AcknowledgedBy,
			formatTime(a.AcknowledgedAt),
			a.EscalatedTo,
			formatTime(a.EscalatedAt),
			formatTime(a.ResolvedAt),
		}
		if err := f.SetSheetRow(alertSheet, cellName(1, i+2), &row); err != nil {
			return nil, fmt.Errorf("failed to write alert row %d: %w", i+2, err)
		}
	}

	// 跌倒记录
	const fallSheet = "Falls"
	if _, err := f.NewSheet(fallSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writeHeader(f, fallSheet, []string{"ID", "Time", "Acknowledged"}, headerStyle); err != nil {
		return nil, err
	}
	for i, fr := range falls {
		row := []interface{}{fr.ID, formatTime(&fr.Timestamp), fr.Acknowledged}
		if err := f.SetSheetRow(fallSheet, cellName(1, i+2), &row); err != nil {
			return nil, fmt.Errorf("failed to write fall row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write excel: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for col, header := range headers {
		cell := cellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}
	return nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
