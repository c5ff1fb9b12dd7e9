package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/attendtrack/attendance-backend/internal/attendance/domain"
	"github.com/attendtrack/attendance-backend/pkg/errors"
	"github.com/attendtrack/attendance-backend/pkg/logger"
)

// RecordRepository is the record store used by the service.
type RecordRepository interface {
	Create(ctx context.Context, rec *domain.Record) error
	CheckOut(ctx context.Context, rec *domain.Record) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Record, error)
	GetForDay(ctx context.Context, userID string, day time.Time) (*domain.Record, error)
	History(ctx context.Context, userID string, q domain.HistoryQuery) ([]*domain.Record, int64, error)
	ListForUser(ctx context.Context, userID string, start, end time.Time) ([]*domain.Record, error)
	Recent(ctx context.Context, userID string, limit int) ([]*domain.Record, error)
}

// PhotoStore keeps check-in and check-out photos.
type PhotoStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string) (string, time.Time, error)
}

// EventPublisher announces state changes. Failures are handled by the implementation.
type EventPublisher interface {
	PublishCheckedIn(ctx context.Context, rec *domain.Record)
	PublishCheckedOut(ctx context.Context, rec *domain.Record)
}

// Paging defaults
const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
	MaxHistoryPage      = 100000
	DefaultRecentLimit  = 5
	MaxRecentLimit      = 50
)

// Options configures an AttendanceService
type Options struct {
	// Location decides which calendar day a check-in belongs to.
	Location      *time.Location
	MaxUploadSize int64
}

// AttendanceService runs the daily check-in/check-out cycle and the personal attendance queries
type AttendanceService struct {
	records       RecordRepository
	photos        PhotoStore
	publisher     EventPublisher
	location      *time.Location
	maxUploadSize int64
	now           func() time.Time
	logger        *logger.Logger
}

// NewAttendanceService creates a new attendance service
func NewAttendanceService(records RecordRepository, photos PhotoStore, publisher EventPublisher, opts Options, log *logger.Logger) *AttendanceService {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceService{
		records:       records,
		photos:        photos,
		publisher:     publisher,
		location:      loc,
		maxUploadSize: opts.MaxUploadSize,
		now:           time.Now,
		logger:        log.WithComponent("attendance"),
	}
}

// CheckIn opens today's record for the user. photo may be nil.
func (s *AttendanceService) CheckIn(ctx context.Context, userID string, req *domain.CheckInRequest, photo *domain.Photo) (*domain.RecordView, error) {
	now := s.now().UTC()
	day := domain.CivilDate(now, s.location)

	existing, err := s.records.GetForDay(ctx, userID, day)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load today's record")
		return nil, errors.Internal("failed to check in", err)
	}
	if existing != nil {
		return nil, errors.Conflict("already checked in today")
	}

	rec := &domain.Record{
		ID:               uuid.New().String(),
		UserID:           userID,
		WorkDate:         day,
		CheckInAt:        &now,
		CheckInLatitude:  req.Latitude,
		CheckInLongitude: req.Longitude,
		Notes:            strings.TrimSpace(req.Notes),
	}

	if photo != nil {
		key, err := s.storePhoto(ctx, userID, day, "check-in", photo)
		if err != nil {
			return nil, err
		}
		rec.CheckInImagePath = &key
	}

	if err := s.records.Create(ctx, rec); err != nil {
		s.discardPhoto(ctx, rec.CheckInImagePath)
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create record")
		return nil, errors.Internal("failed to check in", err)
	}

	s.logger.Info().Str("user_id", userID).Str("record_id", rec.ID).Msg("checked in")
	s.publisher.PublishCheckedIn(ctx, rec)

	return domain.NewRecordView(rec, s.location), nil
}

// CheckOut closes today's open record. Notes are appended to the check-in notes.
func (s *AttendanceService) CheckOut(ctx context.Context, userID string, req *domain.CheckOutRequest, photo *domain.Photo) (*domain.RecordView, error) {
	now := s.now().UTC()
	day := domain.CivilDate(now, s.location)

	rec, err := s.records.GetForDay(ctx, userID, day)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load today's record")
		return nil, errors.Internal("failed to check out", err)
	}
	if rec == nil || rec.CheckInAt == nil {
		return nil, errors.BadRequest("you have not checked in today")
	}
	if rec.CheckOutAt != nil {
		return nil, errors.BadRequest("you have already checked out today")
	}

	rec.CheckOutAt = &now
	rec.CheckOutLatitude = req.Latitude
	rec.CheckOutLongitude = req.Longitude
	rec.AppendNote(req.Notes)

	if photo != nil {
		key, err := s.storePhoto(ctx, userID, day, "check-out", photo)
		if err != nil {
			return nil, err
		}
		rec.CheckOutImagePath = &key
	}

	updated, err := s.records.CheckOut(ctx, rec)
	if err != nil {
		s.discardPhoto(ctx, rec.CheckOutImagePath)
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		s.logger.Error().Err(err).Str("record_id", rec.ID).Msg("failed to check out")
		return nil, errors.Internal("failed to check out", err)
	}
	if !updated {
		s.discardPhoto(ctx, rec.CheckOutImagePath)
		return nil, errors.BadRequest("you have already checked out today")
	}

	s.logger.Info().Str("user_id", userID).Str("record_id", rec.ID).Msg("checked out")
	s.publisher.PublishCheckedOut(ctx, rec)

	return domain.NewRecordView(rec, s.location), nil
}

// Today returns the user's record for the current day, or nil.
func (s *AttendanceService) Today(ctx context.Context, userID string) (*domain.RecordView, error) {
	day := domain.CivilDate(s.now(), s.location)
	rec, err := s.records.GetForDay(ctx, userID, day)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load today's record")
		return nil, errors.Internal("failed to load today's attendance", err)
	}
	return domain.NewRecordView(rec, s.location), nil
}

// History returns a page of the user's records, newest first.
func (s *AttendanceService) History(ctx context.Context, userID string, q domain.HistoryQuery) ([]*domain.RecordView, int64, domain.HistoryQuery, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxHistoryPage {
		q.Page = MaxHistoryPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultHistoryLimit
	}
	if q.Limit > MaxHistoryLimit {
		q.Limit = MaxHistoryLimit
	}
	if q.StartDate != nil && q.EndDate != nil && q.StartDate.After(*q.EndDate) {
		return nil, 0, q, errors.BadRequest("start_date must not be after end_date")
	}

	records, total, err := s.records.History(ctx, userID, q)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load history")
		return nil, 0, q, errors.Internal("failed to load attendance history", err)
	}
	return s.views(records), total, q, nil
}

// MonthlyStats summarizes a calendar month. Zero year or month selects the current one.
func (s *AttendanceService) MonthlyStats(ctx context.Context, userID string, year, month int) (*domain.MonthlyStats, error) {
	if year == 0 || month == 0 {
		today := domain.CivilDate(s.now(), s.location)
		if year == 0 {
			year = today.Year()
		}
		if month == 0 {
			month = int(today.Month())
		}
	}
	if month < 1 || month > 12 {
		return nil, errors.Validation(map[string]string{"month": "must be between 1 and 12"})
	}
	if year < 1 || year > 9999 {
		return nil, errors.Validation(map[string]string{"year": "must be a valid year"})
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	records, err := s.records.ListForUser(ctx, userID, first, last)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load month")
		return nil, errors.Internal("failed to load monthly statistics", err)
	}

	stats := &domain.MonthlyStats{Year: year, Month: month, TotalDays: last.Day()}
	var hours float64
	for _, rec := range records {
		if rec.CheckInAt == nil {
			continue
		}
		stats.PresentDays++
		if h := rec.DurationHours(); h != nil {
			hours += *h
		}
	}
	stats.TotalHours = domain.Round2(hours)
	if stats.PresentDays > 0 {
		stats.AverageHours = domain.Round2(hours / float64(stats.PresentDays))
	}
	return stats, nil
}

// Recent returns the user's latest records.
func (s *AttendanceService) Recent(ctx context.Context, userID string, limit int) ([]*domain.RecordView, error) {
	if limit < 1 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	records, err := s.records.Recent(ctx, userID, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load recent records")
		return nil, errors.Internal("failed to load recent attendance", err)
	}
	return s.views(records), nil
}

// PhotoURL returns a presigned link to one photo of a record. Only the owner or an administrator may see it.
func (s *AttendanceService) PhotoURL(ctx context.Context, requesterID string, isAdmin bool, recordID string, kind domain.PhotoKind) (*domain.PhotoLink, error) {
	if kind != domain.PhotoCheckIn && kind != domain.PhotoCheckOut {
		return nil, errors.Validation(map[string]string{"kind": "must be one of check_in check_out"})
	}
	if _, err := uuid.Parse(recordID); err != nil {
		return nil, errors.NotFound("attendance record")
	}

	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("record_id", recordID).Msg("failed to load record")
		return nil, errors.Internal("failed to load attendance record", err)
	}
	if rec.UserID != requesterID && !isAdmin {
		return nil, errors.Forbidden("you may only view your own photos")
	}

	path := rec.CheckInImagePath
	if kind == domain.PhotoCheckOut {
		path = rec.CheckOutImagePath
	}
	if path == nil || s.photos == nil {
		return nil, errors.NotFound("photo")
	}

	url, expiresAt, err := s.photos.PresignedURL(ctx, *path)
	if err != nil {
		s.logger.Error().Err(err).Str("record_id", recordID).Msg("failed to presign photo")
		return nil, errors.Internal("failed to load photo", err)
	}

	return &domain.PhotoLink{RecordID: rec.ID, Kind: kind, URL: url, ExpiresAt: expiresAt}, nil
}

func (s *AttendanceService) views(records []*domain.Record) []*domain.RecordView {
	out := make([]*domain.RecordView, 0, len(records))
	for _, rec := range records {
		out = append(out, domain.NewRecordView(rec, s.location))
	}
	return out
}
