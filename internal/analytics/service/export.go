package service

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/attendtrack/attendance-backend/internal/analytics/domain"
)

// Sheet names of the exported workbook.
const (
	SheetSummary   = "Summary"
	SheetEmployees = "Employees"
	SheetPoor      = "Poor Performers"
)

// XLSXContentType is the media type of the exported workbook.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var performanceHeader = []interface{}{
	"Name", "Email", "Department", "Position",
	"Working Days", "Present", "Absent", "Late",
	"Total Hours", "Avg Daily Hours",
	"Attendance %", "Late %", "Absence %",
	"Consecutive Absences", "Last Attendance", "Category",
}

// ExportFilename is the download name for an analytics workbook.
func ExportFilename(a *domain.AttendanceAnalytics) string {
	return fmt.Sprintf("attendance-analytics_%s_%s.xlsx", a.StartDate, a.EndDate)
}

// WriteXLSX renders analytics as a workbook with a summary sheet, every
// employee, and the poor performers in their ranked order.
func WriteXLSX(w io.Writer, a *domain.AttendanceAnalytics) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	summary := [][]interface{}{
		{"Start Date", a.StartDate},
		{"End Date", a.EndDate},
		{"Total Employees", a.TotalEmployees},
		{"Average Attendance %", a.AverageAttendanceRate},
		{"Average Late %", a.AverageLateRate},
		{"Poor Performers", len(a.PoorPerformers)},
	}
	for i, row := range summary {
		if err := setRow(f, SheetSummary, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetColStyle(SheetSummary, "A", bold); err != nil {
		return fmt.Errorf("failed to style summary: %w", err)
	}
	if err := f.SetColWidth(SheetSummary, "A", "A", 24); err != nil {
		return fmt.Errorf("failed to size summary: %w", err)
	}

	for _, sheet := range []struct {
		name string
		rows []domain.PerformanceSummary
	}{
		{SheetEmployees, a.EmployeePerformances},
		{SheetPoor, a.PoorPerformers},
	} {
		if err := writePerformanceSheet(f, sheet.name, sheet.rows, bold); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writePerformanceSheet(f *excelize.File, sheet string, rows []domain.PerformanceSummary, headerStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	if err := setRow(f, sheet, 1, performanceHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style header of %s: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "A", "P", 16); err != nil {
		return fmt.Errorf("failed to size %s: %w", sheet, err)
	}

	for i, p := range rows {
		last := ""
		if p.LastAttendanceDate != nil {
			last = *p.LastAttendanceDate
		}
		row := []interface{}{
			p.UserName, p.Email, p.Department, p.Position,
			p.TotalWorkingDays, p.DaysPresent, p.DaysAbsent, p.DaysLate,
			p.TotalHoursWorked, p.AverageDailyHours,
			p.AttendancePercentage, p.LatePercentage, p.AbsencePercentage,
			p.ConsecutiveAbsences, last, string(p.PerformanceCategory),
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}
