package pool

import (
	"context"
	"sync"
	"time"

	"github.com/joshu-sajeev/orchestrator/internal/queue"
	"github.com/rs/zerolog/log"
)

// Handler runs the job a delivery refers to. A nil error acks the delivery;
// anything else requeues it.
type Handler interface {
	Handle(ctx context.Context, jobID string) error
}

type WorkerPool struct {
	count   int
	handler Handler
	sweeper *Sweeper
	wg      sync.WaitGroup
	workers sync.WaitGroup
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewWorkerPool builds a pool of count workers. sweeper may be nil, in which
// case no janitor runs.
func NewWorkerPool(count int, handler Handler, sweeper *Sweeper) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		count:   count,
		handler: handler,
		sweeper: sweeper,
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start drains deliveries with count workers until the channel closes or Stop is called.
func (p *WorkerPool) Start(deliveries <-chan queue.Delivery) {
	for i := 1; i <= p.count; i++ {
		p.wg.Add(1)
		p.workers.Add(1)
		go p.work(i, deliveries)
	}

	// The janitor only sweeps while someone is consuming.
	go func() {
		p.workers.Wait()
		close(p.done)
		p.cancel()
	}()

	if p.sweeper != nil {
		p.wg.Add(1)
		go p.janitor()
	}
}

// Done is closed once every worker has returned, either because Stop was
// called or because the delivery channel closed underneath the pool.
func (p *WorkerPool) Done() <-chan struct{} {
	return p.done
}

func (p *WorkerPool) work(id int, deliveries <-chan queue.Delivery) {
	defer p.wg.Done()
	defer p.workers.Done()
	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			p.process(id, d)
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *WorkerPool) process(id int, d queue.Delivery) {
	if err := p.handler.Handle(p.ctx, d.Message.JobID); err != nil {
		log.Error().Err(err).Int("worker", id).Str("job_id", d.Message.JobID).Msg("requeueing delivery")
		if err := d.Requeue(); err != nil {
			log.Error().Err(err).Str("job_id", d.Message.JobID).Msg("requeue failed")
		}
		return
	}

	if err := d.Ack(); err != nil {
		log.Error().Err(err).Str("job_id", d.Message.JobID).Msg("ack failed")
	}
}

func (p *WorkerPool) janitor() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.sweeper.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.sweeper.Sweep(p.ctx); err != nil {
				log.Error().Err(err).Msg("sweep failed")
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// Stop cancels in-flight jobs and waits for every worker to return.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
}
