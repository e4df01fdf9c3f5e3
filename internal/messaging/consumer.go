package messaging

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes the body of one delivered notification. Returning an
// error nacks the delivery; it is requeued once and dropped on redelivery
// failure, so a poisoned message cannot spin the queue.
type Handler func(ctx context.Context, body []byte) error

// Consumer binds routing keys to handlers on one durable queue.
type Consumer struct {
	ch       *amqp.Channel
	queue    string
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewConsumer declares the durable queue, binds it to the broker's exchange
// for every handled routing key, and returns a consumer ready to start.
// The consumer owns its own channel so delivery flow control never blocks
// publishing.
func (b *Broker) NewConsumer(queue string, handlers map[string]Handler) (*Consumer, error) {
	if queue == "" {
		return nil, fmt.Errorf("consumer queue name is required")
	}
	if len(handlers) == 0 {
		return nil, fmt.Errorf("at least one handler is required")
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consumer channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare queue %q: %w", queue, err)
	}

	for key := range handlers {
		if err := ch.QueueBind(queue, key, b.exchange, false, nil); err != nil {
			ch.Close()
			return nil, fmt.Errorf("bind queue %q to %q: %w", queue, key, err)
		}
	}

	return &Consumer{
		ch:       ch,
		queue:    queue,
		handlers: handlers,
		logger:   b.logger,
	}, nil
}

// Start begins consuming deliveries in a background goroutine until ctx is
// cancelled or the channel closes. Deliveries are acknowledged manually:
// handler success acks, handler failure nacks with a single requeue.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume queue %q: %w", c.queue, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					c.logger.Warn("consumer channel closed", slog.String("queue", c.queue))
					return
				}
				c.dispatch(ctx, d)
			}
		}
	}()

	c.logger.Info("consumer started", slog.String("queue", c.queue))
	return nil
}

// dispatch routes one delivery to its handler and settles it.
func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) {
	handler, ok := c.handlers[d.RoutingKey]
	if !ok {
		c.logger.Warn("no handler for routing key", slog.String("routing_key", d.RoutingKey))
		d.Nack(false, false)
		return
	}

	if err := handler(ctx, d.Body); err != nil {
		c.logger.Error("notification handling failed",
			slog.String("routing_key", d.RoutingKey),
			slog.Bool("redelivered", d.Redelivered),
			slog.Any("error", err),
		)
		d.Nack(false, !d.Redelivered)
		return
	}

	d.Ack(false)
}

// Close releases the consumer channel.
func (c *Consumer) Close() error {
	return c.ch.Close()
}
