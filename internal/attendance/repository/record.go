package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/attendtrack/attendance-backend/internal/attendance/domain"
	"github.com/attendtrack/attendance-backend/pkg/database"
	"github.com/attendtrack/attendance-backend/pkg/errors"
)

const recordColumns = `id, user_id, work_date, check_in_at, check_out_at,
	check_in_latitude, check_in_longitude, check_out_latitude, check_out_longitude,
	notes, check_in_image_path, check_out_image_path, created_at`

// RecordRepository handles attendance record persistence
type RecordRepository struct {
	db *database.DB
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *database.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Create inserts a check-in. A second record for the same user and day is rejected
// by the attendance_records_user_day_key constraint and surfaces as a Conflict.
func (r *RecordRepository) Create(ctx context.Context, rec *domain.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	query := `
		INSERT INTO attendance_records (
			id, user_id, work_date, check_in_at,
			check_in_latitude, check_in_longitude, notes, check_in_image_path
		) VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		rec.ID, rec.UserID, dateParam(rec.WorkDate), rec.CheckInAt,
		rec.CheckInLatitude, rec.CheckInLongitude, rec.Notes, rec.CheckInImagePath,
	).Scan(&rec.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to create attendance record: %w", err)
	}
	return nil
}

// CheckOut stores the check-out fields of rec. It only touches a record that is
// still open and reports false when there was none.
func (r *RecordRepository) CheckOut(ctx context.Context, rec *domain.Record) (bool, error) {
	query := `
		UPDATE attendance_records
		SET check_out_at = $2, check_out_latitude = $3, check_out_longitude = $4,
			notes = $5, check_out_image_path = $6
		WHERE id = $1 AND check_out_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.CheckOutAt, rec.CheckOutLatitude, rec.CheckOutLongitude,
		rec.Notes, rec.CheckOutImagePath,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return false, appErr
		}
		return false, fmt.Errorf("failed to check out: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check out: %w", err)
	}
	return rows == 1, nil
}

// GetByID gets a record by ID
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*domain.Record, error) {
	var rec domain.Record
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE id = $1`
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("attendance record")
		}
		return nil, fmt.Errorf("failed to get attendance record: %w", err)
	}
	return &rec, nil
}

// GetForDay returns the user's record for the given work date, or nil if there is none.
func (r *RecordRepository) GetForDay(ctx context.Context, userID string, day time.Time) (*domain.Record, error) {
	var rec domain.Record
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE user_id = $1 AND work_date = $2::date`
	if err := r.db.GetContext(ctx, &rec, query, userID, dateParam(day)); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attendance for day: %w", err)
	}
	return &rec, nil
}

// History returns a page of the user's records, newest first, and the total match count.
func (r *RecordRepository) History(ctx context.Context, userID string, q domain.HistoryQuery) ([]*domain.Record, int64, error) {
	where := []string{"user_id = $1"}
	args := []interface{}{userID}
	if q.StartDate != nil {
		args = append(args, dateParam(*q.StartDate))
		where = append(where, fmt.Sprintf("work_date >= $%d::date", len(args)))
	}
	if q.EndDate != nil {
		args = append(args, dateParam(*q.EndDate))
		where = append(where, fmt.Sprintf("work_date <= $%d::date", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM attendance_records WHERE `+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count attendance history: %w", err)
	}

	offset := (q.Page - 1) * q.Limit
	args = append(args, q.Limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE %s
		ORDER BY check_in_at DESC NULLS LAST, created_at DESC
		LIMIT $%d OFFSET $%d`, recordColumns, clause, len(args)-1, len(args))

	records := []*domain.Record{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list attendance history: %w", err)
	}
	return records, total, nil
}

// ListForUser returns the user's records with work dates in [start, end], oldest first.
func (r *RecordRepository) ListForUser(ctx context.Context, userID string, start, end time.Time) ([]*domain.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records
		WHERE user_id = $1 AND work_date BETWEEN $2::date AND $3::date
		ORDER BY work_date`

	records := []*domain.Record{}
	if err := r.db.SelectContext(ctx, &records, query, userID, dateParam(start), dateParam(end)); err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	return records, nil
}

// Recent returns the user's last limit records by check-in time.
func (r *RecordRepository) Recent(ctx context.Context, userID string, limit int) ([]*domain.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records
		WHERE user_id = $1
		ORDER BY check_in_at DESC NULLS LAST, created_at DESC
		LIMIT $2`

	records := []*domain.Record{}
	if err := r.db.SelectContext(ctx, &records, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent attendance: %w", err)
	}
	return records, nil
}

// ListForUsersInRange returns every record of the given users with work dates in [start, end].
func (r *RecordRepository) ListForUsersInRange(ctx context.Context, userIDs []string, start, end time.Time) ([]*domain.Record, error) {
	records := []*domain.Record{}
	if len(userIDs) == 0 {
		return records, nil
	}

	query := `SELECT ` + recordColumns + ` FROM attendance_records
		WHERE user_id = ANY($1::uuid[]) AND work_date BETWEEN $2::date AND $3::date
		ORDER BY user_id, work_date`
	if err := r.db.SelectContext(ctx, &records, query, pq.Array(userIDs), dateParam(start), dateParam(end)); err != nil {
		return nil, fmt.Errorf("failed to list attendance for users: %w", err)
	}
	return records, nil
}

// dateParam sends a calendar day as text so the session time zone cannot shift it.
func dateParam(day time.Time) string {
	return day.Format(domain.DateLayout)
}
