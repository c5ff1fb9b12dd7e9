package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/attendtrack/attendance-backend/pkg/logger"
)

// MaxDeliveries is how many times a failing event is redelivered before it is dead-lettered.
const MaxDeliveries = 3

// MessageHandler is a function that handles a message
type MessageHandler func(ctx context.Context, event *Event) error

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRetry
	outcomeDeadLetter
)

// Consumer dispatches events from one queue to handlers keyed by event type
type Consumer struct {
	rmq       *RabbitMQ
	queueName string
	handlers  map[string]MessageHandler
	logger    *logger.Logger
}

// NewConsumer declares queueName and returns a consumer for it
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	if _, err := rmq.DeclareQueue(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}
	return newConsumer(rmq, queueName, log), nil
}

func newConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) *Consumer {
	return &Consumer{
		rmq:       rmq,
		queueName: queueName,
		handlers:  make(map[string]MessageHandler),
		logger:    log,
	}
}

// Subscribe binds the queue to an exchange with a routing key pattern
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := c.rmq.BindQueue(c.queueName, exchange, routingKeyPattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	c.logger.Info().
		Str("queue", c.queueName).
		Str("exchange", exchange).
		Str("routing_key", routingKeyPattern).
		Msg("subscribed to exchange")

	return nil
}

// RegisterHandler registers a handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start consumes in a background goroutine until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.rmq.Channel().Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn().Msg("message channel closed")
					return
				}
				switch c.process(ctx, msg.Body, deliveryCount(msg)) {
				case outcomeAck:
					msg.Ack(false)
				case outcomeRetry:
					msg.Nack(false, true)
				case outcomeDeadLetter:
					msg.Reject(false)
				}
			}
		}
	}()

	return nil
}

func (c *Consumer) process(ctx context.Context, body []byte, deliveries int) outcome {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error().Err(err).Msg("failed to unmarshal event")
		return outcomeDeadLetter
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().Str("event_type", event.Type).Msg("no handler registered for event type")
		return outcomeAck
	}

	if err := handler(ctx, &event); err != nil {
		c.logger.WithCorrelationID(event.CorrelationID).Error().
			Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Int("deliveries", deliveries).
			Msg("failed to process event")

		if deliveries >= MaxDeliveries {
			return outcomeDeadLetter
		}
		return outcomeRetry
	}

	return outcomeAck
}

func deliveryCount(msg amqp.Delivery) int {
	if deaths, ok := msg.Headers["x-death"].([]interface{}); ok {
		for _, death := range deaths {
			if d, ok := death.(amqp.Table); ok {
				if count, ok := d["count"].(int64); ok {
					return int(count)
				}
			}
		}
	}
	if msg.Redelivered {
		return 1
	}
	return 0
}
