package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/ragflow/types"
)

// TaskFunc is the unit of work executed by the queue worker.
type TaskFunc func(ctx context.Context) (any, error)

// Result is the settled outcome of a submitted task.
type Result struct {
	Value any
	Err   error
}

// Status is a point-in-time observability snapshot.
type Status struct {
	Length     int  `json:"queue_length"`
	Processing bool `json:"is_processing"`
}

// Recorder receives queue telemetry.
type Recorder interface {
	RecordQueueRetry()
	SetQueueDepth(depth int)
}

// Config bounds the queue's outbound call rate.
type Config struct {
	// MaxRequestsPerMinute is the rolling per-minute call budget.
	MaxRequestsPerMinute int
	// WaitInterval is how long the worker sleeps before re-checking
	// capacity when the budget is exhausted.
	WaitInterval time.Duration
	// Retry configures backoff for rate-limited tasks. Nil uses defaults.
	Retry *RetryPolicy
	// Metrics receives depth and retry telemetry. Nil disables reporting.
	Metrics Recorder
}

// ErrClosed is returned for tasks still pending when the queue shuts down.
var ErrClosed = types.NewError(types.ErrServiceUnavailable, "queue closed")

type task struct {
	ctx     context.Context
	fn      TaskFunc
	attempt int
	done    chan Result
}

func (t *task) settle(v any, err error) {
	t.done <- Result{Value: v, Err: err}
}

// RateLimitedQueue executes tasks in FIFO order under a per-minute budget.
// Retried tasks re-enter at the front of the deque, so they start before
// tasks enqueued after them; FIFO order is otherwise preserved.
type RateLimitedQueue struct {
	cfg     Config
	policy  *RetryPolicy
	logger  *zap.Logger
	metrics Recorder

	// allow is the capacity check. Defaults to an evenly spaced
	// x/time/rate limiter; tests substitute their own.
	allow func() bool

	mu         sync.Mutex
	pending    []*task
	processing bool

	wake   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates and starts a RateLimitedQueue.
func New(cfg Config, logger *zap.Logger) *RateLimitedQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRequestsPerMinute <= 0 {
		cfg.MaxRequestsPerMinute = 60
	}
	if cfg.WaitInterval <= 0 {
		cfg.WaitInterval = 2 * time.Second
	}
	policy := cfg.Retry
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	policy.normalize()

	// Evenly spaced tokens keep any rolling 60s window at or under budget.
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.MaxRequestsPerMinute)), 1)

	q := &RateLimitedQueue{
		cfg:     cfg,
		policy:  policy,
		logger:  logger.With(zap.String("component", "rate_limited_queue")),
		metrics: cfg.Metrics,
		allow:   limiter.Allow,
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}

	q.wg.Add(1)
	go q.run()
	return q
}

// Submit enqueues fn and returns a channel that receives exactly one Result.
func (q *RateLimitedQueue) Submit(ctx context.Context, fn TaskFunc) <-chan Result {
	t := &task{ctx: ctx, fn: fn, done: make(chan Result, 1)}

	q.mu.Lock()
	select {
	case <-q.stopCh:
		q.mu.Unlock()
		t.settle(nil, ErrClosed)
		return t.done
	default:
	}
	q.pending = append(q.pending, t)
	q.reportDepth(len(q.pending))
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return t.done
}

// Do enqueues fn and blocks until it settles or ctx expires. When ctx expires
// first, the abandoned task is still skipped by the worker via its context.
func (q *RateLimitedQueue) Do(ctx context.Context, fn TaskFunc) (any, error) {
	select {
	case r := <-q.Submit(ctx, fn):
		return r.Value, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Status reports queue depth and whether a task is currently executing.
func (q *RateLimitedQueue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{Length: len(q.pending), Processing: q.processing}
}

// Close stops the worker and fails all pending tasks with ErrClosed.
func (q *RateLimitedQueue) Close() {
	q.once.Do(func() {
		close(q.stopCh)
	})
	q.wg.Wait()

	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.reportDepth(0)
	q.mu.Unlock()
	for _, t := range pending {
		t.settle(nil, ErrClosed)
	}
}

func (q *RateLimitedQueue) popFront() *task {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return nil
	}
	t := q.pending[0]
	q.pending = q.pending[1:]
	q.reportDepth(len(q.pending))
	q.mu.Unlock()
	return t
}

func (q *RateLimitedQueue) pushFront(t *task) {
	q.mu.Lock()
	q.pending = append([]*task{t}, q.pending...)
	q.reportDepth(len(q.pending))
	q.mu.Unlock()
}

// reportDepth is called with mu held so gauge updates land in queue order.
func (q *RateLimitedQueue) reportDepth(depth int) {
	if q.metrics != nil {
		q.metrics.SetQueueDepth(depth)
	}
}

func (q *RateLimitedQueue) setProcessing(v bool) {
	q.mu.Lock()
	q.processing = v
	q.mu.Unlock()
}

// run is the single worker loop. Tasks start in FIFO order relative to
// enqueue time; a retried task re-enters at the front after its backoff.
func (q *RateLimitedQueue) run() {
	defer q.wg.Done()

	for {
		t := q.popFront()
		if t == nil {
			select {
			case <-q.stopCh:
				return
			case <-q.wake:
			}
			continue
		}

		// Capacity gate: bounded wait, never discard the task.
		if !q.waitForCapacity(t) {
			return
		}

		if err := t.ctx.Err(); err != nil {
			t.settle(nil, err)
			continue
		}

		q.setProcessing(true)
		v, err := t.fn(t.ctx)
		q.setProcessing(false)

		if err != nil && types.IsRateLimit(err) && t.attempt < q.policy.MaxRetries {
			t.attempt++
			delay := q.policy.Delay(t.attempt)
			q.logger.Warn("task rate limited, backing off",
				zap.Int("attempt", t.attempt),
				zap.Int("max_retries", q.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(err))

			select {
			case <-q.stopCh:
				t.settle(nil, ErrClosed)
				return
			case <-t.ctx.Done():
				t.settle(nil, fmt.Errorf("retry abandoned: %w", t.ctx.Err()))
			case <-time.After(delay):
				q.pushFront(t)
				if q.metrics != nil {
					q.metrics.RecordQueueRetry()
				}
			}
			continue
		}

		if err != nil && t.attempt > 0 {
			err = fmt.Errorf("failed after %d retries: %w", t.attempt, err)
		}
		t.settle(v, err)
	}
}

// waitForCapacity blocks until the budget admits one call. Returns false only
// when the queue is shutting down (the task is settled with ErrClosed).
func (q *RateLimitedQueue) waitForCapacity(t *task) bool {
	for !q.allow() {
		q.logger.Debug("rate budget exhausted, waiting",
			zap.Duration("interval", q.cfg.WaitInterval))
		select {
		case <-q.stopCh:
			t.settle(nil, ErrClosed)
			return false
		case <-time.After(q.cfg.WaitInterval):
		}
	}
	return true
}
