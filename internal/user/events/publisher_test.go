package events_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendtrack/attendance-backend/internal/user/domain"
	"github.com/attendtrack/attendance-backend/internal/user/events"
	"github.com/attendtrack/attendance-backend/pkg/logger"
	"github.com/attendtrack/attendance-backend/pkg/messaging"
	"github.com/attendtrack/attendance-backend/pkg/testutil"
)

func TestPublishUserCreated(t *testing.T) {
	pub := testutil.NewMockPublisher()
	p := events.NewUserEventPublisher(pub, logger.Nop())

	p.PublishUserCreated(context.Background(), &domain.User{
		ID: "u1", Email: "alice@example.com", Name: "Alice", Department: "Engineering",
		PasswordHash: "secret-hash",
	})

	e, ok := pub.Find(messaging.EventUserCreated)
	require.True(t, ok)
	data := e.Payload.(messaging.UserCreatedEvent)
	assert.Equal(t, "u1", data.UserID)
	assert.Equal(t, "alice@example.com", data.Email)
	assert.Equal(t, "Engineering", data.Department)
	assert.False(t, data.IsAdmin)
	assert.NotContains(t, string(testutil.MustJSONBytes(data)), "secret-hash")
}

func TestPublishUserUpdated(t *testing.T) {
	pub := testutil.NewMockPublisher()
	p := events.NewUserEventPublisher(pub, logger.Nop())

	p.PublishUserUpdated(context.Background(), &domain.User{ID: "u1"}, nil)
	pub.AssertNoEventsPublished(t)

	p.PublishUserUpdated(context.Background(), &domain.User{ID: "u1"}, []string{"name", "phone"})

	e, ok := pub.Find(messaging.EventUserUpdated)
	require.True(t, ok)
	assert.Equal(t, []string{"name", "phone"}, e.Payload.(messaging.UserUpdatedEvent).Changed)
}

func TestPublishUserDeleted_SwallowsBrokerErrors(t *testing.T) {
	pub := testutil.NewMockPublisher()
	pub.Err = fmt.Errorf("channel closed")
	p := events.NewUserEventPublisher(pub, logger.Nop())

	assert.NotPanics(t, func() {
		p.PublishUserDeleted(context.Background(), "u1", "admin")
	})

	e, ok := pub.Find(messaging.EventUserDeleted)
	require.True(t, ok)
	data := e.Payload.(messaging.UserDeletedEvent)
	assert.Equal(t, "u1", data.UserID)
	assert.Equal(t, "admin", data.DeletedBy)
}
