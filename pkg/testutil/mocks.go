package testutil

import (
	"context"
	"database/sql/driver"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/attendtrack/attendance-backend/pkg/database"
	"github.com/attendtrack/attendance-backend/pkg/logger"
)

// MockDB wraps sqlmock for repository unit tests.
//
//	mockDB := testutil.NewMockDB(t)
//	mockDB.ExpectQuery("SELECT ...").WillReturnRows(...)
//	repo := repository.NewUserRepository(mockDB.Database())
type MockDB struct {
	DB   *sqlx.DB
	Mock sqlmock.Sqlmock
}

// NewMockDB creates a mock database and verifies expectations when the test ends.
func NewMockDB(t *testing.T) *MockDB {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	m := &MockDB{
		DB:   sqlx.NewDb(db, "postgres"),
		Mock: mock,
	}
	t.Cleanup(func() {
		m.ExpectationsWereMet(t)
		m.DB.Close()
	})
	return m
}

// Database returns the mock wrapped the way repositories expect it.
func (m *MockDB) Database() *database.DB {
	return database.Wrap(m.DB, logger.Nop())
}

// ExpectQuery sets up an expected query, matched literally
func (m *MockDB) ExpectQuery(query string) *sqlmock.ExpectedQuery {
	return m.Mock.ExpectQuery(regexp.QuoteMeta(query))
}

// ExpectExec sets up an expected exec, matched literally
func (m *MockDB) ExpectExec(query string) *sqlmock.ExpectedExec {
	return m.Mock.ExpectExec(regexp.QuoteMeta(query))
}

// ExpectationsWereMet verifies all expectations were met
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	if err := m.Mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

// MockRows creates a new mock rows object
func MockRows(columns ...string) *sqlmock.Rows {
	return sqlmock.NewRows(columns)
}

// AnyTime is a matcher for any time.Time value
type AnyTime struct{}

// Match satisfies the sqlmock.Argument interface
func (a AnyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// AnyUUID is a matcher for any UUID string
type AnyUUID struct{}

// Match satisfies the sqlmock.Argument interface
func (a AnyUUID) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && uuidPattern.MatchString(s)
}

// MockPublisher records published events
type MockPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
	Err    error
}

// PublishedEvent represents an event that was published
type PublishedEvent struct {
	Type    string
	Payload interface{}
}

// NewMockPublisher creates a new mock publisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// Publish records an event for later verification
func (m *MockPublisher) Publish(_ context.Context, eventType string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{Type: eventType, Payload: payload})
	return m.Err
}

// Events returns a copy of everything published so far
func (m *MockPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Find returns the first event of the given type
func (m *MockPublisher) Find(eventType string) (PublishedEvent, bool) {
	for _, e := range m.Events() {
		if e.Type == eventType {
			return e, true
		}
	}
	return PublishedEvent{}, false
}

// AssertEventPublished checks if an event of the given type was published
func (m *MockPublisher) AssertEventPublished(t *testing.T, eventType string) {
	t.Helper()
	if _, ok := m.Find(eventType); !ok {
		t.Errorf("expected event %q to be published, but it wasn't", eventType)
	}
}

// AssertNoEventsPublished checks that no events were published
func (m *MockPublisher) AssertNoEventsPublished(t *testing.T) {
	t.Helper()
	if events := m.Events(); len(events) > 0 {
		t.Errorf("expected no events, but got %d: %+v", len(events), events)
	}
}
