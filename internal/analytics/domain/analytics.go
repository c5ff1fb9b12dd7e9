package domain

import (
	"time"
)

// Category is the performance label assigned to an employee for a date range.
type Category string

const (
	CategoryExcellent Category = "Excellent"
	CategoryGood      Category = "Good"
	CategoryPoor      Category = "Poor"
	CategoryCritical  Category = "Critical"
)

// DateRange is an inclusive span of calendar days, each held as midnight UTC.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether day falls inside the range.
func (r DateRange) Contains(day time.Time) bool {
	return !day.Before(r.Start) && !day.After(r.End)
}

// PerformanceSummary is the per-employee result of an analytics run.
// Percentages and hours are rounded to two decimals.
type PerformanceSummary struct {
	UserID               string   `json:"user_id"`
	UserName             string   `json:"user_name"`
	Department           string   `json:"department"`
	Position             string   `json:"position"`
	Email                string   `json:"email"`
	TotalWorkingDays     int      `json:"total_working_days"`
	DaysPresent          int      `json:"days_present"`
	DaysAbsent           int      `json:"days_absent"`
	DaysLate             int      `json:"days_late"`
	TotalHoursWorked     float64  `json:"total_hours_worked"`
	AverageDailyHours    float64  `json:"average_daily_hours"`
	AttendancePercentage float64  `json:"attendance_percentage"`
	LatePercentage       float64  `json:"late_percentage"`
	AbsencePercentage    float64  `json:"absence_percentage"`
	ConsecutiveAbsences  int      `json:"consecutive_absences"`
	LastAttendanceDate   *string  `json:"last_attendance_date"`
	PerformanceCategory  Category `json:"performance_category"`
}

// AttendanceAnalytics is the full result of an analytics run.
type AttendanceAnalytics struct {
	StartDate             string               `json:"start_date"`
	EndDate               string               `json:"end_date"`
	TotalEmployees        int                  `json:"total_employees"`
	EmployeePerformances  []PerformanceSummary `json:"employee_performances"`
	PoorPerformers        []PerformanceSummary `json:"poor_performers"`
	AverageAttendanceRate float64              `json:"average_attendance_rate"`
	AverageLateRate       float64              `json:"average_late_rate"`
}
