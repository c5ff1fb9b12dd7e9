package service

import (
	"context"
	"time"

	"github.com/attendtrack/attendance-backend/internal/analytics/domain"
	attendancedomain "github.com/attendtrack/attendance-backend/internal/attendance/domain"
	userdomain "github.com/attendtrack/attendance-backend/internal/user/domain"
	"github.com/attendtrack/attendance-backend/pkg/errors"
	"github.com/attendtrack/attendance-backend/pkg/logger"
)

// UserDirectory resolves users.
type UserDirectory interface {
	ListUsers(ctx context.Context, excludeAdmins bool) ([]*userdomain.User, error)
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// RecordStore loads attendance records by work date, both ends inclusive.
type RecordStore interface {
	ListForUsersInRange(ctx context.Context, userIDs []string, start, end time.Time) ([]*attendancedomain.Record, error)
}

// AnalyticsService gates, loads and aggregates attendance analytics
type AnalyticsService struct {
	users            UserDirectory
	records          RecordStore
	aggregator       *Aggregator
	location         *time.Location
	defaultRangeDays int
	now              func() time.Time
	logger           *logger.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(users UserDirectory, records RecordStore, policy Policy, defaultRangeDays int, log *logger.Logger) *AnalyticsService {
	agg := NewAggregator(policy)
	if defaultRangeDays <= 0 {
		defaultRangeDays = 30
	}
	return &AnalyticsService{
		users:            users,
		records:          records,
		aggregator:       agg,
		location:         agg.policy.Location,
		defaultRangeDays: defaultRangeDays,
		now:              time.Now,
		logger:           log.WithComponent("analytics"),
	}
}

// ResolveRange fills in missing bounds. Without an end the range ends today;
// without a start it begins defaultRangeDays before the end.
func (s *AnalyticsService) ResolveRange(start, end *time.Time) (domain.DateRange, error) {
	var rng domain.DateRange
	if end != nil {
		rng.End = attendancedomain.CivilDate(*end, time.UTC)
	} else {
		rng.End = attendancedomain.CivilDate(s.now(), s.location)
	}
	if start != nil {
		rng.Start = attendancedomain.CivilDate(*start, time.UTC)
	} else {
		rng.Start = rng.End.AddDate(0, 0, -s.defaultRangeDays)
	}

	if rng.Start.After(rng.End) {
		return domain.DateRange{}, errors.BadRequest("start_date must not be after end_date")
	}
	return rng, nil
}

// Get returns analytics for the range. Only administrators may call it.
func (s *AnalyticsService) Get(ctx context.Context, requesterID string, start, end *time.Time) (*domain.AttendanceAnalytics, error) {
	if err := s.requireAdmin(ctx, requesterID); err != nil {
		return nil, err
	}

	rng, err := s.ResolveRange(start, end)
	if err != nil {
		return nil, err
	}

	users, err := s.users.ListUsers(ctx, true)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, errors.Internal("failed to load users", err)
	}

	var records []*attendancedomain.Record
	if len(users) > 0 {
		ids := make([]string, 0, len(users))
		for _, u := range users {
			ids = append(ids, u.ID)
		}

		from := rng.Start
		if streakFrom := s.aggregator.StreakStart(rng.End); streakFrom.Before(from) {
			from = streakFrom
		}

		records, err = s.records.ListForUsersInRange(ctx, ids, from, rng.End)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to list attendance records")
			return nil, errors.Internal("failed to load attendance records", err)
		}
	}

	result := s.aggregator.Aggregate(rng, users, records)

	s.logger.Debug().
		Str("requester_id", requesterID).
		Str("start_date", result.StartDate).
		Str("end_date", result.EndDate).
		Int("employees", result.TotalEmployees).
		Int("poor_performers", len(result.PoorPerformers)).
		Msg("analytics computed")

	return result, nil
}

func (s *AnalyticsService) requireAdmin(ctx context.Context, requesterID string) error {
	if requesterID == "" {
		return errors.Unauthorized("authentication required")
	}

	requester, err := s.users.GetByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return errors.Forbidden("admin access required")
		}
		s.logger.Error().Err(err).Str("user_id", requesterID).Msg("failed to resolve requester")
		return errors.Internal("failed to resolve user", err)
	}
	if !requester.IsAdmin {
		return errors.Forbidden("admin access required")
	}
	return nil
}
