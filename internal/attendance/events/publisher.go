package events

import (
	"context"
	"time"

	"github.com/attendtrack/attendance-backend/internal/attendance/domain"
	"github.com/attendtrack/attendance-backend/pkg/logger"
	"github.com/attendtrack/attendance-backend/pkg/messaging"
)

// AttendanceEventPublisher publishes check-in and check-out events
type AttendanceEventPublisher struct {
	publisher messaging.EventPublisher
	location  *time.Location
	logger    *logger.Logger
}

// NewAttendanceEventPublisher creates a new attendance event publisher.
// loc decides the calendar day reported as work_date.
func NewAttendanceEventPublisher(publisher messaging.EventPublisher, loc *time.Location, log *logger.Logger) *AttendanceEventPublisher {
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceEventPublisher{
		publisher: publisher,
		location:  loc,
		logger:    log,
	}
}

// PublishCheckedIn publishes an attendance checked-in event
func (p *AttendanceEventPublisher) PublishCheckedIn(ctx context.Context, rec *domain.Record) {
	if rec.CheckInAt == nil {
		return
	}

	data := messaging.AttendanceCheckedInEvent{
		RecordID:  rec.ID,
		UserID:    rec.UserID,
		WorkDate:  rec.Date(p.location).Format(domain.DateLayout),
		CheckInAt: *rec.CheckInAt,
		HasPhoto:  rec.CheckInImagePath != nil,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAttendanceCheckedIn, data); err != nil {
		p.logger.Error().Err(err).Str("record_id", rec.ID).Msg("failed to publish checked-in event")
	}
}

// PublishCheckedOut publishes an attendance checked-out event
func (p *AttendanceEventPublisher) PublishCheckedOut(ctx context.Context, rec *domain.Record) {
	if rec.CheckOutAt == nil {
		return
	}

	data := messaging.AttendanceCheckedOutEvent{
		RecordID:   rec.ID,
		UserID:     rec.UserID,
		WorkDate:   rec.Date(p.location).Format(domain.DateLayout),
		CheckOutAt: *rec.CheckOutAt,
	}
	if h := rec.DurationHours(); h != nil {
		data.Hours = domain.Round2(*h)
	}

	if err := p.publisher.Publish(ctx, messaging.EventAttendanceCheckedOut, data); err != nil {
		p.logger.Error().Err(err).Str("record_id", rec.ID).Msg("failed to publish checked-out event")
	}
}
