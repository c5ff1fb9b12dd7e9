package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/attendtrack/attendance-backend/pkg/database"
)

// DefaultPassword is the plaintext behind every fixture's password hash
const DefaultPassword = "password123"

// UserFixture represents a row in users
type UserFixture struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Department   string
	Position     string
	IsAdmin      bool
	CreatedAt    time.Time
}

// RecordFixture represents a row in attendance_records
type RecordFixture struct {
	ID         string
	UserID     string
	WorkDate   time.Time
	CheckInAt  *time.Time
	CheckOutAt *time.Time
	Notes      string
}

// FixtureFactory creates test fixtures with unique defaults
type FixtureFactory struct {
	mu       sync.Mutex
	sequence int
	hash     string
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	hash, _ := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	return &FixtureFactory{hash: string(hash)}
}

func (f *FixtureFactory) nextSeq() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequence++
	return f.sequence
}

// User creates a user fixture with defaults
func (f *FixtureFactory) User(opts ...func(*UserFixture)) UserFixture {
	seq := f.nextSeq()
	user := UserFixture{
		ID:           uuid.New().String(),
		Name:         fmt.Sprintf("Employee %03d", seq),
		Email:        fmt.Sprintf("employee%d@test.local", seq),
		PasswordHash: f.hash,
		Department:   "Engineering",
		Position:     "Engineer",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

func WithName(name string) func(*UserFixture) {
	return func(u *UserFixture) { u.Name = name }
}

func WithEmail(email string) func(*UserFixture) {
	return func(u *UserFixture) { u.Email = email }
}

func AsAdmin() func(*UserFixture) {
	return func(u *UserFixture) { u.IsAdmin = true }
}

// Insert writes the user to db
func (u UserFixture) Insert(ctx context.Context, db *database.DB) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, department, position, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Department, u.Position, u.IsAdmin, u.CreatedAt)
	return err
}

// Record creates a record fixture for userID checked in at checkIn.
// A zero checkOut leaves the record open.
func (f *FixtureFactory) Record(userID string, checkIn, checkOut time.Time) RecordFixture {
	rec := RecordFixture{
		ID:        uuid.New().String(),
		UserID:    userID,
		WorkDate:  time.Date(checkIn.Year(), checkIn.Month(), checkIn.Day(), 0, 0, 0, 0, time.UTC),
		CheckInAt: &checkIn,
	}
	if !checkOut.IsZero() {
		rec.CheckOutAt = &checkOut
	}
	return rec
}

// Insert writes the record to db
func (r RecordFixture) Insert(ctx context.Context, db *database.DB) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, user_id, work_date, check_in_at, check_out_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.UserID, r.WorkDate, r.CheckInAt, r.CheckOutAt, r.Notes)
	return err
}
