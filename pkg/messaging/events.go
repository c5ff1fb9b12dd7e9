package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"

	EventAttendanceCheckedIn  = "attendance.checked_in"
	EventAttendanceCheckedOut = "attendance.checked_out"
)

// Exchange names
const (
	ExchangeUserEvents       = "user.events"
	ExchangeAttendanceEvents = "attendance.events"
)

// Event is the envelope published on every exchange
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData decodes the event payload into v
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// UserCreatedEvent is published after an administrator creates an account
type UserCreatedEvent struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Department string `json:"department"`
	IsAdmin    bool   `json:"is_admin"`
}

// UserUpdatedEvent carries the names of the fields that changed
type UserUpdatedEvent struct {
	UserID  string   `json:"user_id"`
	Changed []string `json:"changed"`
}

// UserDeletedEvent triggers cleanup of everything owned by the user
type UserDeletedEvent struct {
	UserID    string `json:"user_id"`
	DeletedBy string `json:"deleted_by"`
}

type AttendanceCheckedInEvent struct {
	RecordID  string    `json:"record_id"`
	UserID    string    `json:"user_id"`
	WorkDate  string    `json:"work_date"`
	CheckInAt time.Time `json:"check_in_at"`
	HasPhoto  bool      `json:"has_photo"`
}

type AttendanceCheckedOutEvent struct {
	RecordID   string    `json:"record_id"`
	UserID     string    `json:"user_id"`
	WorkDate   string    `json:"work_date"`
	CheckOutAt time.Time `json:"check_out_at"`
	Hours      float64   `json:"hours"`
}
