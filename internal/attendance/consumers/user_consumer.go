package consumers

import (
	"context"
	"fmt"

	"github.com/attendtrack/attendance-backend/pkg/logger"
	"github.com/attendtrack/attendance-backend/pkg/messaging"
)

// QueueName is the attendance service's queue for user events
const QueueName = "attendance-service.user-events"

// PhotoPurger removes stored objects by key prefix.
type PhotoPurger interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// UserEventHandler reacts to user lifecycle events (testable without RabbitMQ).
// Records go with the user through the foreign key; photos live in object storage and are purged here.
type UserEventHandler struct {
	photos PhotoPurger
	logger *logger.Logger
}

// NewUserEventHandler creates a new user event handler
func NewUserEventHandler(photos PhotoPurger, log *logger.Logger) *UserEventHandler {
	return &UserEventHandler{
		photos: photos,
		logger: log,
	}
}

// HandleEvent dispatches a user event by type
func (h *UserEventHandler) HandleEvent(ctx context.Context, event *messaging.Event) error {
	switch event.Type {
	case messaging.EventUserDeleted:
		return h.handleUserDeleted(ctx, event)
	default:
		h.logger.Debug().Str("event_type", event.Type).Msg("ignoring user event")
		return nil
	}
}

func (h *UserEventHandler) handleUserDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		h.logger.Error().Err(err).Msg("failed to unmarshal UserDeletedEvent")
		return err
	}
	if data.UserID == "" {
		return fmt.Errorf("user.deleted event without user_id")
	}

	log := h.logger.WithUserID(data.UserID)
	removed, err := h.photos.DeletePrefix(ctx, data.UserID+"/")
	if err != nil {
		log.Error().Err(err).Msg("failed to purge photos")
		return err
	}

	log.Info().
		Int("photos", removed).
		Msg("purged photos of deleted user")
	return nil
}

// UserEventConsumer consumes user events for the attendance service
type UserEventConsumer struct {
	consumer *messaging.Consumer
	handler  *UserEventHandler
	logger   *logger.Logger
}

// NewUserEventConsumer declares the queue, binds it to user events and registers the handlers
func NewUserEventConsumer(rmq *messaging.RabbitMQ, photos PhotoPurger, log *logger.Logger) (*UserEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, QueueName, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeUserEvents, "user.#"); err != nil {
		return nil, err
	}

	handler := NewUserEventHandler(photos, log)
	consumer.RegisterHandler(messaging.EventUserDeleted, handler.handleUserDeleted)

	return &UserEventConsumer{
		consumer: consumer,
		handler:  handler,
		logger:   log,
	}, nil
}

// Start starts consuming messages
func (c *UserEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}
