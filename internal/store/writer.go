package store

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/backoff/v2"
)

// WriteFunc performs one persistence step.
type WriteFunc func(ctx context.Context, s Store) error

type writeJob struct {
	name string
	fn   WriteFunc
}

// WriterOption configures an AsyncWriter.
type WriterOption func(*AsyncWriter)

// WithQueueSize sets how many writes may wait before Enqueue starts dropping.
func WithQueueSize(n int) WriterOption {
	return func(w *AsyncWriter) {
		w.queue = make(chan writeJob, n)
	}
}

// WithRetryPolicy replaces the default exponential retry policy.
func WithRetryPolicy(p backoff.Policy) WriterOption {
	return func(w *AsyncWriter) {
		w.policy = p
	}
}

// AsyncWriter applies writes on its own goroutine, in the order they were
// enqueued, retrying failures with backoff. Callers never wait on storage.
type AsyncWriter struct {
	store   Store
	logger  *log.Logger
	queue   chan writeJob
	policy  backoff.Policy
	timeout time.Duration
	done    chan struct{}
}

// NewAsyncWriter returns a writer for s. Call Run to start it.
func NewAsyncWriter(s Store, logger *log.Logger, opts ...WriterOption) *AsyncWriter {
	w := &AsyncWriter{
		store:  s,
		logger: logger.WithPrefix("store"),
		queue:  make(chan writeJob, 1024),
		policy: backoff.Exponential(
			backoff.WithMinInterval(100*time.Millisecond),
			backoff.WithMaxInterval(10*time.Second),
			backoff.WithJitterFactor(0.2),
			backoff.WithMaxRetries(8),
		),
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enqueue schedules fn. It never blocks: when the queue is full the write is
// dropped and logged, and false is returned.
func (w *AsyncWriter) Enqueue(name string, fn WriteFunc) bool {
	select {
	case w.queue <- writeJob{name: name, fn: fn}:
		return true
	default:
		w.logger.Error("Write queue full, dropping write", "write", name)
		return false
	}
}

// Run applies queued writes until ctx is cancelled, then drains what is
// already queued with a single attempt each.
func (w *AsyncWriter) Run(ctx context.Context) error {
	defer close(w.done)
	for {
		select {
		case job := <-w.queue:
			w.apply(ctx, job)
		case <-ctx.Done():
			w.drain()
			return nil
		}
	}
}

// Done is closed once Run has returned.
func (w *AsyncWriter) Done() <-chan struct{} {
	return w.done
}

// Pending returns the number of queued writes.
func (w *AsyncWriter) Pending() int {
	return len(w.queue)
}

func (w *AsyncWriter) apply(ctx context.Context, job writeJob) {
	b := w.policy.Start(ctx)
	attempt := 0
	var err error
	for backoff.Continue(b) {
		attempt++
		if err = w.once(ctx, job); err == nil {
			if attempt > 1 {
				w.logger.Info("Write succeeded after retry", "write", job.name, "attempts", attempt)
			}
			return
		}
		w.logger.Warn("Write failed, will retry", "write", job.name, "attempt", attempt, "error", err)
	}
	if ctx.Err() != nil {
		// Shutting down: one last attempt outside the cancelled context.
		if err = w.once(context.Background(), job); err == nil {
			return
		}
	}
	w.logger.Error("Write abandoned", "write", job.name, "attempts", attempt, "error", err)
}

func (w *AsyncWriter) once(ctx context.Context, job writeJob) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return job.fn(ctx, w.store)
}

func (w *AsyncWriter) drain() {
	for {
		select {
		case job := <-w.queue:
			if err := w.once(context.Background(), job); err != nil {
				w.logger.Error("Write lost at shutdown", "write", job.name, "error", err)
			}
		default:
			return
		}
	}
}
