package service

import (
	"sort"
	"time"

	"github.com/attendtrack/attendance-backend/internal/analytics/domain"
	attendancedomain "github.com/attendtrack/attendance-backend/internal/attendance/domain"
	userdomain "github.com/attendtrack/attendance-backend/internal/user/domain"
)

// Policy holds the rules the aggregator applies.
type Policy struct {
	// Location decides which calendar day a timestamp falls on and the wall-clock time of a check-in.
	Location *time.Location
	// LateCutoff is the offset from midnight after which a check-in counts as late.
	LateCutoff time.Duration
	// StreakWindowDays bounds the backward walk for consecutive absences, in calendar days.
	StreakWindowDays int
}

// MaxStreakWindowDays caps the consecutive-absence walk.
const MaxStreakWindowDays = 30

// DefaultPolicy is UTC, 09:00 and a 30 day streak window.
func DefaultPolicy() Policy {
	return Policy{
		Location:         time.UTC,
		LateCutoff:       9 * time.Hour,
		StreakWindowDays: MaxStreakWindowDays,
	}
}

// Aggregator turns raw attendance records into performance summaries.
// It performs no I/O.
type Aggregator struct {
	policy Policy
}

// NewAggregator creates an aggregator. A nil Location or a cutoff outside one day
// falls back to the default; the streak window is clamped to 1..MaxStreakWindowDays.
// A zero LateCutoff is midnight.
func NewAggregator(policy Policy) *Aggregator {
	def := DefaultPolicy()
	if policy.Location == nil {
		policy.Location = def.Location
	}
	if policy.LateCutoff < 0 || policy.LateCutoff >= 24*time.Hour {
		policy.LateCutoff = def.LateCutoff
	}
	if policy.StreakWindowDays <= 0 {
		policy.StreakWindowDays = def.StreakWindowDays
	}
	if policy.StreakWindowDays > MaxStreakWindowDays {
		policy.StreakWindowDays = MaxStreakWindowDays
	}
	return &Aggregator{policy: policy}
}

// StreakStart is the earliest day the streak walk for a range ending at end can reach.
// Callers fetching records should cover it so the walk sees real data.
func (a *Aggregator) StreakStart(end time.Time) time.Time {
	return end.AddDate(0, 0, -(a.policy.StreakWindowDays - 1))
}

// metrics is a summary before rounding.
type metrics struct {
	user           *userdomain.User
	workingDays    int
	present        int
	absent         int
	late           int
	totalHours     float64
	averageHours   float64
	attendancePct  float64
	latePct        float64
	absencePct     float64
	streak         int
	lastAttendance *time.Time
	category       domain.Category
}

// Aggregate computes one summary per user, the poor-performer list and the overall averages.
// Records outside rng still feed the consecutive-absence walk but no other metric.
func (a *Aggregator) Aggregate(rng domain.DateRange, users []*userdomain.User, records []*attendancedomain.Record) *domain.AttendanceAnalytics {
	byUser := make(map[string][]*attendancedomain.Record, len(users))
	for _, rec := range records {
		byUser[rec.UserID] = append(byUser[rec.UserID], rec)
	}

	workingDays := WorkingDays(rng.Start, rng.End)

	all := make([]metrics, 0, len(users))
	for _, u := range users {
		all = append(all, a.userMetrics(u, rng, workingDays, byUser[u.ID]))
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].user.Name != all[j].user.Name {
			return all[i].user.Name < all[j].user.Name
		}
		return all[i].user.ID < all[j].user.ID
	})

	poor := make([]metrics, 0)
	for _, m := range all {
		if isPoorPerformer(m) {
			poor = append(poor, m)
		}
	}
	sort.SliceStable(poor, func(i, j int) bool {
		if poor[i].attendancePct != poor[j].attendancePct {
			return poor[i].attendancePct < poor[j].attendancePct
		}
		return poor[i].absencePct > poor[j].absencePct
	})

	var attendanceSum, lateSum float64
	for _, m := range all {
		attendanceSum += m.attendancePct
		lateSum += m.latePct
	}
	var avgAttendance, avgLate float64
	if len(all) > 0 {
		avgAttendance = attendanceSum / float64(len(all))
		avgLate = lateSum / float64(len(all))
	}

	return &domain.AttendanceAnalytics{
		StartDate:             rng.Start.Format(attendancedomain.DateLayout),
		EndDate:               rng.End.Format(attendancedomain.DateLayout),
		TotalEmployees:        len(all),
		EmployeePerformances:  present(all),
		PoorPerformers:        present(poor),
		AverageAttendanceRate: attendancedomain.Round2(avgAttendance),
		AverageLateRate:       attendancedomain.Round2(avgLate),
	}
}

func (a *Aggregator) userMetrics(u *userdomain.User, rng domain.DateRange, workingDays int, records []*attendancedomain.Record) metrics {
	m := metrics{user: u, workingDays: workingDays}

	presentDays := make(map[time.Time]bool, len(records))
	for _, rec := range records {
		if rec.CheckInAt == nil {
			continue
		}
		day := rec.Date(a.policy.Location)
		presentDays[day] = true

		if !rng.Contains(day) {
			continue
		}
		m.present++
		if a.isLate(*rec.CheckInAt) {
			m.late++
		}
		if h := rec.DurationHours(); h != nil {
			m.totalHours += *h
		}
		if m.lastAttendance == nil || day.After(*m.lastAttendance) {
			d := day
			m.lastAttendance = &d
		}
	}

	m.absent = workingDays - m.present
	if m.present > 0 {
		m.averageHours = m.totalHours / float64(m.present)
		m.latePct = percent(m.late, m.present)
	}
	if workingDays > 0 {
		m.attendancePct = percent(m.present, workingDays)
		m.absencePct = percent(m.absent, workingDays)
	}
	m.streak = ConsecutiveAbsences(rng.End, presentDays, a.policy.StreakWindowDays)
	m.category = Classify(m.attendancePct, m.latePct, m.absencePct, m.streak)
	return m
}

// isLate reports whether the wall-clock check-in time is strictly after the cutoff.
func (a *Aggregator) isLate(checkIn time.Time) bool {
	local := checkIn.In(a.policy.Location)
	sinceMidnight := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
	return sinceMidnight > a.policy.LateCutoff
}

// WorkingDays counts the days from start to end inclusive that are not Saturday or Sunday.
func WorkingDays(start, end time.Time) int {
	count := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if !isWeekend(day) {
			count++
		}
	}
	return count
}

// ConsecutiveAbsences walks backward from end for at most window calendar days,
// never more than MaxStreakWindowDays. Weekends are skipped; every weekday without
// a check-in extends the streak and the first weekday with one ends the walk.
func ConsecutiveAbsences(end time.Time, presentDays map[time.Time]bool, window int) int {
	if window > MaxStreakWindowDays {
		window = MaxStreakWindowDays
	}
	streak := 0
	for i := 0; i < window; i++ {
		day := end.AddDate(0, 0, -i)
		if isWeekend(day) {
			continue
		}
		if presentDays[day] {
			break
		}
		streak++
	}
	return streak
}

// Classify assigns a category. The first matching rule wins.
func Classify(attendancePct, latePct, absencePct float64, streak int) domain.Category {
	switch {
	case attendancePct < 60 || absencePct > 40 || streak > 5:
		return domain.CategoryCritical
	case attendancePct < 80 || latePct > 30 || absencePct > 20 || streak > 3:
		return domain.CategoryPoor
	case attendancePct < 95 || latePct > 15 || absencePct > 10:
		return domain.CategoryGood
	default:
		return domain.CategoryExcellent
	}
}

func isPoorPerformer(m metrics) bool {
	return m.attendancePct < 80 ||
		m.latePct > 30 ||
		m.absencePct > 20 ||
		m.streak > 3 ||
		m.category == domain.CategoryCritical ||
		m.category == domain.CategoryPoor
}

func isWeekend(day time.Time) bool {
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func percent(n, d int) float64 {
	return float64(n) * 100 / float64(d)
}

func present(ms []metrics) []domain.PerformanceSummary {
	out := make([]domain.PerformanceSummary, 0, len(ms))
	for _, m := range ms {
		s := domain.PerformanceSummary{
			UserID:               m.user.ID,
			UserName:             m.user.Name,
			Department:           m.user.Department,
			Position:             m.user.Position,
			Email:                m.user.Email,
			TotalWorkingDays:     m.workingDays,
			DaysPresent:          m.present,
			DaysAbsent:           m.absent,
			DaysLate:             m.late,
			TotalHoursWorked:     attendancedomain.Round2(m.totalHours),
			AverageDailyHours:    attendancedomain.Round2(m.averageHours),
			AttendancePercentage: attendancedomain.Round2(m.attendancePct),
			LatePercentage:       attendancedomain.Round2(m.latePct),
			AbsencePercentage:    attendancedomain.Round2(m.absencePct),
			ConsecutiveAbsences:  m.streak,
			PerformanceCategory:  m.category,
		}
		if m.lastAttendance != nil {
			d := m.lastAttendance.Format(attendancedomain.DateLayout)
			s.LastAttendanceDate = &d
		}
		out = append(out, s)
	}
	return out
}
