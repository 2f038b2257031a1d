package worker

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"docmind/internal/platform/rabbitmq"
)

// Handler processes one message body. A returned error nacks the message
// without requeueing it.
type Handler func(ctx context.Context, body []byte) error

// QueueWorker consumes one durable queue and feeds every delivery to its
// handler, one at a time.
type QueueWorker struct {
	conn    *amqp.Connection
	queue   string
	handler Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueueWorker(conn *amqp.Connection, queue string, handler Handler) *QueueWorker {
	return &QueueWorker{
		conn:    conn,
		queue:   queue,
		handler: handler,
	}
}

func (w *QueueWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareQueue(ch, w.queue); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					log.Warn().Str("queue", w.queue).Msg("delivery channel closed")
					return
				}
				w.process(workerCtx, d)
			}
		}
	}()

	log.Info().Str("queue", w.queue).Msg("queue worker started")
	return nil
}

func (w *QueueWorker) process(ctx context.Context, d amqp.Delivery) {
	if err := w.handler(ctx, d.Body); err != nil {
		log.Error().Err(err).Str("queue", w.queue).Msg("worker handler failed")
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func (w *QueueWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
