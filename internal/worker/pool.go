package worker

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finzap/finzap/internal/whatsapp"
)

var ErrQueueFull = errors.New("worker queue full")
var ErrStopped = errors.New("worker pool stopped")

// Handler processes one inbound message.
type Handler interface {
	HandleInbound(ctx context.Context, in whatsapp.Inbound)
}

type job struct {
	id string
	in whatsapp.Inbound
}

// Pool fans inbound messages out to a fixed set of workers. Messages are
// partitioned by sender phone number, so all messages from one user are
// processed in arrival order by the same worker while different users
// proceed in parallel.
type Pool struct {
	handler Handler
	queues  []chan job
	wg      sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

func NewPool(handler Handler, workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		handler: handler,
		queues:  make([]chan job, workers),
	}
	for i := range p.queues {
		p.queues[i] = make(chan job, queueSize)
	}
	return p
}

// Start launches the workers. They run until Stop drains the queues. Jobs
// execute detached from ctx's cancellation: once a message is enqueued it
// was already acked to the provider and will never be redelivered, so a
// shutdown signal must not kill its DB and delivery calls mid-drain.
func (p *Pool) Start(ctx context.Context) {
	jobCtx := context.WithoutCancel(ctx)
	for i, queue := range p.queues {
		p.wg.Add(1)
		go p.run(jobCtx, i, queue)
	}
	slog.Info("worker pool started", "workers", len(p.queues))
}

func (p *Pool) run(ctx context.Context, worker int, queue <-chan job) {
	defer p.wg.Done()
	for j := range queue {
		log := slog.With("job_id", j.id, "worker", worker, "wamid", j.in.WAMID)
		log.Debug("job started")
		start := time.Now()
		p.handler.HandleInbound(ctx, j.in)
		log.Debug("job finished", "duration", time.Since(start))
	}
}

// Submit enqueues one message for processing. It never blocks: a full
// partition queue is reported to the caller so the webhook can signal
// backpressure to the platform.
func (p *Pool) Submit(in whatsapp.Inbound) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}

	j := job{id: uuid.NewString(), in: in}
	queue := p.queues[p.partition(in.From)]
	select {
	case queue <- j:
		slog.Debug("job enqueued", "job_id", j.id, "wamid", in.WAMID)
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queues and waits for in-flight and queued jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for _, queue := range p.queues {
		close(queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
	slog.Info("worker pool drained")
}

func (p *Pool) partition(phone string) int {
	h := fnv.New32a()
	h.Write([]byte(phone))
	return int(h.Sum32() % uint32(len(p.queues)))
}
