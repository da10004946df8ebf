package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Channel is the part of *amqp.Channel the publisher and consumer use.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

var _ Channel = (*amqp.Channel)(nil)

// Dial connects to the broker, retrying with exponential backoff while the
// broker is still starting.
func Dial(ctx context.Context, cfg *Config) (*amqp.Connection, error) {
	var conn *amqp.Connection

	op := func() error {
		c, err := amqp.Dial(cfg.URL)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 10 * time.Second
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Msg("rabbitmq not ready")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(cfg.DialAttempts-1)), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}

	log.Info().Str("queue", cfg.Queue).Msg("rabbitmq connected")
	return conn, nil
}

func declare(ch Channel, queue string) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return nil
}
