// Package amqp carries XP events between the API process and the
// gamification worker over RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"finchat/internal/core"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishXPEvent publishes one XP event for asynchronous ingestion.
func (c *Client) PublishXPEvent(ctx context.Context, ev core.XPEvent) error {
	body, err := NewXPEventMessage(ev).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.InfoContext(ctx, "Published XP event",
		"event_id", ev.EventID,
		"user_id", ev.UserID,
		"action", ev.Action,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	return nil
}

// ConsumeXPEvents delivers queued events to the handler with manual acks.
// Duplicate events are acked (already counted), permanently bad events are
// dropped, and transient failures are requeued for redelivery.
func (c *Client) ConsumeXPEvents(ctx context.Context, handler func(*XPEventMessage) error) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming XP events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := XPEventMessageFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
				delivery.Nack(false, false) // malformed, never retryable
				continue
			}

			err = handler(msg)
			switch {
			case err == nil:
				delivery.Ack(false)
				slog.InfoContext(ctx, "Processed XP event",
					"event_id", msg.EventID,
					"user_id", msg.UserID)
			case errors.Is(err, core.ErrDuplicateEvent):
				// Redelivery of an event already in the log.
				delivery.Ack(false)
				slog.InfoContext(ctx, "Skipped duplicate XP event",
					"event_id", msg.EventID,
					"user_id", msg.UserID)
			case permanent(err):
				delivery.Nack(false, false)
				slog.WarnContext(ctx, "Dropped unprocessable XP event",
					"error", err,
					"event_id", msg.EventID,
					"user_id", msg.UserID)
			default:
				delivery.Nack(false, true) // transient, requeue
				slog.ErrorContext(ctx, "Failed to handle XP event, requeued",
					"error", err,
					"event_id", msg.EventID,
					"user_id", msg.UserID)
			}
		}
	}
}

// permanent reports whether redelivering the event could ever succeed.
func permanent(err error) bool {
	return errors.Is(err, core.ErrUnknownUser) ||
		errors.Is(err, core.ErrEmptyEventID) ||
		errors.Is(err, core.ErrEmptyUserID) ||
		errors.Is(err, core.ErrEmptyAction)
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
