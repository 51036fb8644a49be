package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one unit of background work.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a single job. A returned error schedules a retry until
// MaxRetries is exhausted.
type Handler func(context.Context, Job) error

// QueueConfig sizes the worker pool and its retry policy. Zero values fall
// back to small sane defaults.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.BufferSize <= 0 {
		c.BufferSize = c.Workers * 4
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Queue is an in-process buffered job dispatcher. It exists so slow side
// effects, like webhook delivery, never run on a request goroutine.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig

	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewQueue wires a named queue to its handler. Call Start before Enqueue.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		jobs:    make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Subsequent calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.started = true
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.run()
	}
	q.cfg.Logger.Info("queue started", zap.String("queue", q.name), zap.Int("workers", q.cfg.Workers))
}

// Stop cancels the workers and blocks until they exit. Jobs still buffered
// are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	q.cfg.Logger.Info("queue stopped", zap.String("queue", q.name))
}

// Enqueue hands a job to the pool, blocking while the buffer is full. The
// caller context bounds the wait; a canceled queue rejects the job outright.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	qctx, started := q.ctx, q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %q not started", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-qctx.Done():
		return fmt.Errorf("queue %q stopped: %w", q.name, qctx.Err())
	case <-ctx.Done():
		return ctx.Err()
	case q.jobs <- job:
		return nil
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.handler(q.ctx, job); err != nil {
				q.retry(job, err)
			}
		}
	}
}

func (q *Queue) retry(job Job, cause error) {
	job.Attempt++
	log := q.cfg.Logger.With(
		zap.String("queue", q.name),
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
	)
	if job.Attempt > q.cfg.MaxRetries {
		log.Error("job retries exhausted", zap.Error(cause))
		return
	}
	log.Warn("job failed, scheduling retry", zap.Int("attempt", job.Attempt), zap.Error(cause))

	go func() {
		timer := time.NewTimer(q.cfg.RetryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.Enqueue(q.ctx, job); err != nil {
				log.Error("requeue failed", zap.Error(err))
			}
		}
	}()
}
