// Package amqp feeds bulk job tasks from RabbitMQ into the worker pool.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	amqplib "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/dispatch"
	"github.com/Harsh-BH/bulkcheck/internal/domain"
)

const (
	maxReconnectDelay  = 30 * time.Second
	baseReconnectDelay = 1 * time.Second
)

// Consumer reads tasks and sends them to a channel as JobMessages whose Ack/Nack
// callbacks settle the delivery.
type Consumer struct {
	url      string
	prefetch int
	conn     *amqplib.Connection
	channel  *amqplib.Channel
	logger   *zap.Logger
	jobs     chan<- *domain.JobMessage

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
}

// NewConsumer connects to RabbitMQ. prefetch bounds unacknowledged deliveries and
// should match the worker pool size.
func NewConsumer(url string, prefetch int, jobs chan<- *domain.JobMessage, logger *zap.Logger) (*Consumer, error) {
	if prefetch < 1 {
		prefetch = 1
	}
	c := &Consumer{
		url:      url,
		prefetch: prefetch,
		logger:   logger,
		jobs:     jobs,
		closeCh:  make(chan struct{}),
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Consumer) connect() error {
	conn, err := amqplib.Dial(c.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("amqp qos: %w", err)
	}

	if err := dispatch.DeclareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	return nil
}

// Start consumes until ctx is cancelled or Close is called, reconnecting with
// exponential backoff when the connection drops.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if err == nil {
			return nil
		}

		select {
		case <-c.closeCh:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		c.logger.Warn("AMQP consumer lost connection, reconnecting", zap.Error(err))

		for attempt := 0; ; attempt++ {
			delay := time.Duration(math.Min(
				float64(baseReconnectDelay)*math.Pow(2, float64(attempt)),
				float64(maxReconnectDelay),
			))
			c.logger.Info("Reconnect attempt",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)

			select {
			case <-c.closeCh:
				return nil
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}

			if err := c.connect(); err != nil {
				c.logger.Error("Reconnect failed", zap.Error(err))
				continue
			}

			c.logger.Info("Reconnected to RabbitMQ")
			break
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()

	if ch == nil {
		return fmt.Errorf("channel is nil")
	}

	deliveries, err := ch.Consume(
		dispatch.QueueName,
		"",    // auto-generated consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}

	c.logger.Info("AMQP consumer started", zap.String("queue", dispatch.QueueName))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("AMQP consumer stopping (context cancelled)")
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			jobID, err := decodeTask(delivery.Body)
			if err != nil {
				c.logger.Error("Failed to decode task",
					zap.Error(err),
					zap.String("body", string(delivery.Body)),
				)
				delivery.Nack(false, false) // dead-letter
				continue
			}

			c.logger.Debug("Received job from queue", zap.String("job_id", jobID.String()))

			tag := delivery.DeliveryTag
			localCh := ch

			msg := &domain.JobMessage{
				JobID: jobID,
				Ack: func() error {
					return localCh.Ack(tag, false)
				},
				Nack: func(requeue bool) error {
					return localCh.Nack(tag, false, requeue)
				},
			}

			// Blocks while the pool is busy; prefetch keeps the backlog on the broker.
			select {
			case c.jobs <- msg:
			case <-ctx.Done():
				delivery.Nack(false, true)
				return nil
			}
		}
	}
}

// decodeTask parses a task body and rejects a missing job id.
func decodeTask(body []byte) (uuid.UUID, error) {
	var task dispatch.Task
	if err := json.Unmarshal(body, &task); err != nil {
		return uuid.Nil, fmt.Errorf("unmarshal task: %w", err)
	}
	if task.JobID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("task has no job id")
	}
	return task.JobID, nil
}

// Close shuts down the consumer.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeCh)

	var firstErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
