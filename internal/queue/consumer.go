package queue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Delivery is one decoded message awaiting acknowledgement.
type Delivery struct {
	Message      Message
	Acknowledger amqp.Acknowledger
	Tag          uint64
}

func (d Delivery) Ack() error { return d.Acknowledger.Ack(d.Tag, false) }

// Requeue hands the message back to the broker for redelivery.
func (d Delivery) Requeue() error { return d.Acknowledger.Nack(d.Tag, false, true) }

// Drop discards the message.
func (d Delivery) Drop() error { return d.Acknowledger.Nack(d.Tag, false, false) }

type Consumer struct {
	ch    Channel
	queue string
	tag   string
}

// NewConsumer declares the queue and limits unacknowledged deliveries to
// cfg.Prefetch.
func NewConsumer(ch Channel, cfg *Config, tag string) (*Consumer, error) {
	if err := declare(ch, cfg.Queue); err != nil {
		return nil, err
	}
	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &Consumer{ch: ch, queue: cfg.Queue, tag: tag}, nil
}

// Deliveries starts a manual-ack consumer. The returned channel is closed when
// ctx ends or the broker channel closes; anything not acked by then is
// redelivered by the broker. Malformed messages are dropped here and never
// reach the caller.
func (c *Consumer) Deliveries(ctx context.Context) (<-chan Delivery, error) {
	msgs, err := c.ch.Consume(c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		return nil, &TransportError{Op: "consume", Err: err}
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					log.Warn().Str("queue", c.queue).Msg("rabbitmq delivery channel closed")
					return
				}

				msg, err := Decode(m.Body)
				if err != nil {
					log.Error().Err(err).Uint64("tag", m.DeliveryTag).Msg("dropping malformed message")
					if err := m.Nack(false, false); err != nil {
						log.Error().Err(err).Msg("nack malformed message")
					}
					continue
				}

				d := Delivery{Message: msg, Acknowledger: m.Acknowledger, Tag: m.DeliveryTag}
				select {
				case out <- d:
				case <-ctx.Done():
					_ = d.Requeue()
					return
				}
			}
		}
	}()

	return out, nil
}

func (c *Consumer) Close() error { return c.ch.Close() }
