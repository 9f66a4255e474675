package dispatch

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker topology shared by the publisher and the worker consumer.
const (
	ExchangeName   = "bulkcheck.direct"
	RoutingKey     = "verify"
	QueueName      = "bulk_verify_tasks"
	DeadLetterName = "bulkcheck.dlx"
	DeadLetterQ    = "bulk_verify_dead_letter"
)

// DeclareTopology declares the exchanges and queues. Declarations are idempotent.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(DeadLetterName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(DeadLetterQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare DLQ: %w", err)
	}
	if err := ch.QueueBind(DeadLetterQ, "", DeadLetterName, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind DLQ: %w", err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange": DeadLetterName,
		"x-queue-type":           "quorum",
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, args); err != nil {
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}
	if err := ch.QueueBind(QueueName, RoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind queue: %w", err)
	}
	return nil
}
