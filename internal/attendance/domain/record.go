package domain

import (
	"io"
	"math"
	"strings"
	"time"
)

// Record is one user's attendance for one calendar day.
type Record struct {
	ID                string     `json:"id" db:"id"`
	UserID            string     `json:"user_id" db:"user_id"`
	WorkDate          time.Time  `json:"work_date" db:"work_date"`
	CheckInAt         *time.Time `json:"check_in_at" db:"check_in_at"`
	CheckOutAt        *time.Time `json:"check_out_at" db:"check_out_at"`
	CheckInLatitude   *float64   `json:"check_in_latitude" db:"check_in_latitude"`
	CheckInLongitude  *float64   `json:"check_in_longitude" db:"check_in_longitude"`
	CheckOutLatitude  *float64   `json:"check_out_latitude" db:"check_out_latitude"`
	CheckOutLongitude *float64   `json:"check_out_longitude" db:"check_out_longitude"`
	Notes             string     `json:"notes" db:"notes"`
	CheckInImagePath  *string    `json:"-" db:"check_in_image_path"`
	CheckOutImagePath *string    `json:"-" db:"check_out_image_path"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// Date is the calendar day of the check-in in loc, or of creation when there is no check-in.
// The result is midnight UTC so dates compare with ==.
func (r *Record) Date(loc *time.Location) time.Time {
	if r.CheckInAt != nil {
		return CivilDate(*r.CheckInAt, loc)
	}
	return CivilDate(r.CreatedAt, loc)
}

// DurationHours is the time between check-in and check-out, or nil if either is missing.
func (r *Record) DurationHours() *float64 {
	if r.CheckInAt == nil || r.CheckOutAt == nil {
		return nil
	}
	h := r.CheckOutAt.Sub(*r.CheckInAt).Hours()
	return &h
}

// IsOpen reports whether the user checked in and has not checked out yet.
func (r *Record) IsOpen() bool {
	return r.CheckInAt != nil && r.CheckOutAt == nil
}

// Note limits. A record holds at most one check-in and one check-out note,
// so MaxNotesLength is what the notes column must accept.
const (
	MaxNoteLength  = 500
	NoteSeparator  = "; "
	MaxNotesLength = 2*MaxNoteLength + len(NoteSeparator)
)

// AppendNote adds note after any existing notes, separated by NoteSeparator.
func (r *Record) AppendNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if r.Notes == "" {
		r.Notes = note
		return
	}
	r.Notes = r.Notes + NoteSeparator + note
}

// CivilDate returns the calendar day of t as observed in loc, as midnight UTC.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayStatus is where a user stands in the check-in/check-out cycle for a day.
type DayStatus string

const (
	StatusNotCheckedIn DayStatus = "not_checked_in"
	StatusCheckedIn    DayStatus = "checked_in"
	StatusCheckedOut   DayStatus = "checked_out"
)

// StatusOf derives the day status from the day's record, which may be nil.
func StatusOf(r *Record) DayStatus {
	switch {
	case r == nil || r.CheckInAt == nil:
		return StatusNotCheckedIn
	case r.CheckOutAt == nil:
		return StatusCheckedIn
	default:
		return StatusCheckedOut
	}
}

// PhotoKind selects which photo of a record is addressed.
type PhotoKind string

const (
	PhotoCheckIn  PhotoKind = "check_in"
	PhotoCheckOut PhotoKind = "check_out"
)

// Photo is an uploaded image attached to a check-in or check-out.
type Photo struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// CheckInRequest carries the optional location and note of a check-in
type CheckInRequest struct {
	Latitude  *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`
	Notes     string   `json:"notes" validate:"max=500"`
}

// CheckOutRequest carries the optional location and note of a check-out
type CheckOutRequest struct {
	Latitude  *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`
	Notes     string   `json:"notes" validate:"max=500"`
}

// RecordView is a record as returned by the API, with derived fields filled in.
type RecordView struct {
	*Record
	Date             string    `json:"date"`
	TotalHours       *float64  `json:"total_hours"`
	Status           DayStatus `json:"status"`
	HasCheckInPhoto  bool      `json:"has_check_in_photo"`
	HasCheckOutPhoto bool      `json:"has_check_out_photo"`
}

// NewRecordView derives the presentation fields of r.
func NewRecordView(r *Record, loc *time.Location) *RecordView {
	if r == nil {
		return nil
	}
	v := &RecordView{
		Record:           r,
		Date:             r.Date(loc).Format(DateLayout),
		Status:           StatusOf(r),
		HasCheckInPhoto:  r.CheckInImagePath != nil,
		HasCheckOutPhoto: r.CheckOutImagePath != nil,
	}
	if h := r.DurationHours(); h != nil {
		rounded := Round2(*h)
		v.TotalHours = &rounded
	}
	return v
}

// HistoryQuery selects a page of a user's records.
type HistoryQuery struct {
	Page      int
	Limit     int
	StartDate *time.Time
	EndDate   *time.Time
}

// MonthlyStats summarizes one calendar month for a user.
type MonthlyStats struct {
	Year         int     `json:"year"`
	Month        int     `json:"month"`
	TotalDays    int     `json:"total_days"`
	PresentDays  int     `json:"present_days"`
	TotalHours   float64 `json:"total_hours"`
	AverageHours float64 `json:"average_hours"`
}

// PhotoLink is a presigned download URL for a record photo.
type PhotoLink struct {
	RecordID  string    `json:"record_id"`
	Kind      PhotoKind `json:"kind"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
