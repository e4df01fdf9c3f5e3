package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends a change notification to the broker. Publishing is a
// synchronous, best-effort call: no retries, no buffering. A failed publish
// surfaces to the caller so the write pipeline can abort before persisting.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// NopPublisher discards all notifications. It is used when the broker is
// disabled in configuration.
type NopPublisher struct{}

// Publish implements Publisher as a no-op.
func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// Broker wraps an AMQP connection with one publishing channel bound to a
// single direct exchange. Channels created by amqp091-go are safe for
// concurrent publishing from request goroutines.
type Broker struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   *slog.Logger
}

// Dial connects to the broker at url and declares the durable direct
// exchange used for all change notifications.
func Dial(url, exchange string, logger *slog.Logger) (*Broker, error) {
	if exchange == "" {
		return nil, errors.New("broker exchange name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}

	logger.Info("broker connected", slog.String("exchange", exchange))

	return &Broker{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// Publish marshals payload as JSON and sends it on the broker's exchange
// with the given routing key.
func (b *Broker) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	err = b.ch.PublishWithContext(ctx, b.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %q: %w", routingKey, err)
	}

	b.logger.Debug("notification published", slog.String("routing_key", routingKey))
	return nil
}

// Healthy reports whether the underlying connection is still open.
func (b *Broker) Healthy() bool {
	return b != nil && b.conn != nil && !b.conn.IsClosed()
}

// Close releases the publishing channel and the underlying connection.
func (b *Broker) Close() error {
	if b.ch != nil {
		if err := b.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			b.conn.Close()
			return err
		}
	}
	if b.conn != nil {
		if err := b.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			return err
		}
	}
	return nil
}
