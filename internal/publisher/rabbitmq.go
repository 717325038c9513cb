// Package publisher announces finished fetch jobs on a RabbitMQ exchange so
// downstream consumers can refresh analytics without polling.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"engagement_tracker/internal/domain"
)

type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declare(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger = logger.With("component", "publisher")
	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// declare sets up a durable direct exchange with one bound durable queue.
func declare(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// JobMessage is the body of one job event.
type JobMessage struct {
	Event     string            `json:"event"`
	Job       domain.JobOutcome `json:"job"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewJobMessage names the event after the job's final status, e.g.
// "job.completed" or "job.rate_limited".
func NewJobMessage(outcome domain.JobOutcome, at time.Time) JobMessage {
	return JobMessage{
		Event:     "job." + string(outcome.Status),
		Job:       outcome,
		Timestamp: at.UTC(),
	}
}

func (r *RabbitMQ) Publish(ctx context.Context, outcome domain.JobOutcome) error {
	now := time.Now()
	msg := NewJobMessage(outcome, now)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    outcome.JobID.String(),
			Type:         msg.Event,
			Body:         body,
			Timestamp:    now,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published job event",
		"job_id", outcome.JobID,
		"event", msg.Event,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
