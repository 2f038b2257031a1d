package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends JSON payloads to durable queues. Queues are declared on
// first use.
type Publisher struct {
	conn *amqp.Connection

	mu       sync.Mutex
	declared map[string]bool
}

func NewPublisher(conn *amqp.Connection) *Publisher {
	return &Publisher{conn: conn, declared: make(map[string]bool)}
}

func (p *Publisher) Publish(ctx context.Context, queue string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload failed: %w", queue, err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := p.declare(ch, queue); err != nil {
		return err
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish to %s failed: %w", queue, err)
	}
	return nil
}

func (p *Publisher) declare(ch *amqp.Channel, queue string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.declared[queue] {
		return nil
	}
	if err := DeclareQueue(ch, queue); err != nil {
		return err
	}
	p.declared[queue] = true
	return nil
}

// DeclareQueue declares queue as durable and non-exclusive.
func DeclareQueue(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s failed: %w", queue, err)
	}
	return nil
}
