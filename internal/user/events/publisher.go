package events

import (
	"context"

	"github.com/attendtrack/attendance-backend/internal/user/domain"
	"github.com/attendtrack/attendance-backend/pkg/logger"
	"github.com/attendtrack/attendance-backend/pkg/messaging"
)

// UserEventPublisher publishes user-related events
type UserEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewUserEventPublisher creates a new user event publisher
func NewUserEventPublisher(publisher messaging.EventPublisher, log *logger.Logger) *UserEventPublisher {
	return &UserEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

// PublishUserCreated publishes a user created event
func (p *UserEventPublisher) PublishUserCreated(ctx context.Context, user *domain.User) {
	data := messaging.UserCreatedEvent{
		UserID:     user.ID,
		Email:      user.Email,
		Name:       user.Name,
		Department: user.Department,
		IsAdmin:    user.IsAdmin,
	}

	if err := p.publisher.Publish(ctx, messaging.EventUserCreated, data); err != nil {
		p.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to publish user created event")
	}
}

// PublishUserUpdated publishes a user updated event. Nothing is sent when no field changed.
func (p *UserEventPublisher) PublishUserUpdated(ctx context.Context, user *domain.User, changed []string) {
	if len(changed) == 0 {
		return
	}

	data := messaging.UserUpdatedEvent{
		UserID:  user.ID,
		Changed: changed,
	}

	if err := p.publisher.Publish(ctx, messaging.EventUserUpdated, data); err != nil {
		p.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to publish user updated event")
	}
}

// PublishUserDeleted publishes a user deleted event
func (p *UserEventPublisher) PublishUserDeleted(ctx context.Context, userID, deletedBy string) {
	data := messaging.UserDeletedEvent{
		UserID:    userID,
		DeletedBy: deletedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventUserDeleted, data); err != nil {
		p.logger.Error().Err(err).Str("user_id", userID).Msg("failed to publish user deleted event")
	}
}
