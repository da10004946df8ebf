package queue

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Publisher sends job references to the provisioning queue through the
// default exchange.
type Publisher struct {
	mu    sync.Mutex
	ch    Channel
	queue string

	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

func NewPublisher(ch Channel, cfg *Config) (*Publisher, error) {
	if err := declare(ch, cfg.Queue); err != nil {
		return nil, err
	}
	return &Publisher{
		ch:        ch,
		queue:     cfg.Queue,
		attempts:  cfg.PublishAttempts,
		baseDelay: cfg.PublishBaseDelay,
		maxDelay:  cfg.PublishMaxDelay,
	}, nil
}

// Publish enqueues one persistent message for jobID. Broker failures are
// retried with exponential backoff; once retries are exhausted, or ctx ends,
// a *TransportError is returned.
func (p *Publisher) Publish(ctx context.Context, jobID string) error {
	body, err := Encode(Message{JobID: jobID})
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    jobID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	op := func() error {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg)
	}

	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("job_id", jobID).Dur("retry_in", wait).Msg("publish failed, retrying")
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(p.policy(), ctx), notify); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("publish failed")
		return &TransportError{Op: "publish", Err: err}
	}

	log.Debug().Str("job_id", jobID).Str("queue", p.queue).Msg("job published")
	return nil
}

func (p *Publisher) policy() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.baseDelay
	exp.MaxInterval = p.maxDelay
	exp.MaxElapsedTime = 0
	return backoff.WithMaxRetries(exp, uint64(p.attempts-1))
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}
