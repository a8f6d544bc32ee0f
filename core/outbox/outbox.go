// Package outbox runs side-effect writes (archive rows, published events) on
// a small worker pool so they never block update handling.
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after Close.
	ErrQueueClosed = errors.New("outbox: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("outbox: queue full")

	secretRe = regexp.MustCompile(`(password=|://[^:/@\s]+:)[^@\s]+`)
)

// Options controls queue depth, concurrency and retry policy.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on a single job including retries.
	MaxDuration time.Duration
}

// Job is one unit of work. Run must be idempotent when retries are enabled.
type Job struct {
	Name   string
	Target string
	Run    func(ctx context.Context) error
	// Done, when set, runs once after the last attempt with its error.
	Done func(ctx context.Context, err error)
}

type queued struct {
	ctx context.Context
	job Job
}

// Queue executes jobs asynchronously with linear backoff between attempts.
type Queue struct {
	opts Options
	jobs chan queued
	stop chan struct{}
	once sync.Once
	mu   sync.RWMutex
	wg   sync.WaitGroup

	done atomic.Uint64
	errs atomic.Uint64
}

// New starts a queue; zero options get defaults.
func New(opts Options) *Queue {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 30 * time.Second
	}

	q := &Queue{
		opts: opts,
		jobs: make(chan queued, opts.QueueSize),
		stop: make(chan struct{}),
	}
	q.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go q.worker()
	}
	return q
}

// Enqueue schedules job. The request context only carries log metadata;
// its cancellation does not abort the job.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	if job.Run == nil {
		return errors.New("outbox: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	select {
	case <-q.stop:
		return ErrQueueClosed
	default:
	}
	select {
	case q.jobs <- queued{ctx: context.WithoutCancel(ctx), job: job}:
		return nil
	default:
		logger.Warn(ctx, "outbox", "outbox.rejected",
			slog.String("job", job.Name),
			slog.String("cause", "queue_full"),
		)
		return ErrQueueFull
	}
}

// ErrorCount returns the number of jobs that failed after all attempts.
func (q *Queue) ErrorCount() uint64 { return q.errs.Load() }

// DoneCount returns the number of jobs that succeeded.
func (q *Queue) DoneCount() uint64 { return q.done.Load() }

// Close stops accepting jobs and waits until queued ones are processed.
func (q *Queue) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		close(q.stop)
		close(q.jobs)
		q.mu.Unlock()
		q.wg.Wait()
	})
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for item := range q.jobs {
		q.handle(item)
	}
}

func (q *Queue) handle(item queued) {
	ctx, cancel := context.WithTimeout(item.ctx, q.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := q.opts.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := item.job.Run(ctx)
		if err == nil {
			q.done.Add(1)
			item.job.finish(ctx, nil)
			attrs := append(jobAttrs(item.job), slog.Duration("duration", logger.Took(start)))
			if attempt > 1 {
				logger.Info(ctx, "outbox", "outbox.retry.success", append(attrs, slog.Int("attempts", attempt))...)
			} else {
				logger.Debug(ctx, "outbox", "outbox.done", attrs...)
			}
			return
		}
		lastErr = err
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}

		delay := q.opts.RetryBackoff * time.Duration(attempt)
		logger.Debug(ctx, "outbox", "outbox.retry.backoff",
			append(jobAttrs(item.job),
				slog.Int("attempts", attempt),
				slog.Duration("backoff", delay),
				slog.String("err_kind", netutil.Classify(err)),
			)...,
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			lastErr = ctx.Err()
			attempt = attempts
		case <-timer.C:
		}
	}

	q.errs.Add(1)
	logger.Error(ctx, "outbox", "outbox.fail",
		append(jobAttrs(item.job),
			slog.String("status", "fail"),
			slog.String("err", redact(lastErr)),
			slog.String("err_kind", netutil.Classify(lastErr)),
			slog.Bool("retryable", netutil.ShouldRetry(lastErr)),
			slog.Duration("duration", logger.Took(start)),
		)...,
	)
	item.job.finish(ctx, lastErr)
}

func (j Job) finish(ctx context.Context, err error) {
	if j.Done != nil {
		j.Done(ctx, err)
	}
}

func jobAttrs(j Job) []slog.Attr {
	attrs := []slog.Attr{slog.String("job", j.Name)}
	if j.Target != "" {
		attrs = append(attrs, slog.String("queue", j.Target))
	}
	return attrs
}

// redact masks credentials that drivers sometimes echo back in error text.
func redact(err error) string {
	if err == nil {
		return ""
	}
	return secretRe.ReplaceAllString(err.Error(), "${1}<redacted>")
}
