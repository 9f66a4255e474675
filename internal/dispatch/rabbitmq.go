package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
)

const (
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 30 * time.Second

	publishTimeout = 5 * time.Second
)

type rabbitPublisher struct {
	url     string
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger
	mu      sync.RWMutex
	closed  bool
}

// NewRabbitMQPublisher connects to the broker, declares the topology and
// returns a Dispatcher that publishes {jobId} tasks with publisher confirms.
func NewRabbitMQPublisher(url string, logger *zap.Logger) (Dispatcher, error) {
	p := &rabbitPublisher{
		url:    url,
		logger: logger,
	}

	if err := p.connect(); err != nil {
		return nil, err
	}

	go p.watchConnection()

	return p, nil
}

func (p *rabbitPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq: channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: enable confirms: %w", err)
	}

	if err := DeclareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	p.mu.Lock()
	p.conn = conn
	p.channel = ch
	p.mu.Unlock()

	p.logger.Info("RabbitMQ publisher initialized",
		zap.String("exchange", ExchangeName),
		zap.String("queue", QueueName),
	)

	return nil
}

// watchConnection blocks on NotifyClose and reconnects with exponential backoff.
func (p *rabbitPublisher) watchConnection() {
	for {
		p.mu.RLock()
		if p.closed {
			p.mu.RUnlock()
			return
		}
		conn := p.conn
		p.mu.RUnlock()

		reason, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
		if !ok {
			return
		}

		p.logger.Warn("RabbitMQ connection lost, reconnecting",
			zap.String("reason", reason.Error()),
		)

		delay := reconnectDelay
		for {
			p.mu.RLock()
			if p.closed {
				p.mu.RUnlock()
				return
			}
			p.mu.RUnlock()

			time.Sleep(delay)

			if err := p.connect(); err != nil {
				p.logger.Warn("RabbitMQ reconnect failed", zap.Error(err), zap.Duration("retry_in", delay))
				delay = min(delay*2, maxReconnectDelay)
				continue
			}

			p.logger.Info("RabbitMQ reconnected")
			break
		}
	}
}

func (p *rabbitPublisher) Dispatch(ctx context.Context, job *domain.Job) error {
	body, err := json.Marshal(Task{JobID: job.ID})
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal task: %w", err)
	}

	p.mu.RLock()
	ch := p.channel
	closed := p.closed
	p.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if ch == nil || ch.IsClosed() {
		return fmt.Errorf("rabbitmq: channel not available (reconnecting)")
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	confirmation, err := ch.PublishWithDeferredConfirmWithContext(publishCtx,
		ExchangeName,
		RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID.String(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	acked, err := confirmation.WaitContext(publishCtx)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish confirmation (job_id=%s): %w", job.ID, err)
	}
	if !acked {
		return fmt.Errorf("rabbitmq: broker nacked message (job_id=%s)", job.ID)
	}

	p.logger.Debug("Published job to RabbitMQ",
		zap.String("job_id", job.ID.String()),
		zap.Int("item_count", job.Total()),
	)
	return nil
}

func (p *rabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
