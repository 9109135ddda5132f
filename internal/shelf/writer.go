package shelf

import (
	"context"
	"errors"
	"sync"
	"time"

	"bookshelf/internal/logging"
)

var errWriterClosed = errors.New("writer closed")

type job struct {
	desc    string
	run     func(ctx context.Context) error
	barrier chan struct{}
}

// writer runs persistence jobs one at a time in enqueue order. The queue is
// unbounded so enqueueing never blocks a mutation.
type writer struct {
	name    string
	logger  logging.Logger
	timeout time.Duration

	mu     sync.Mutex
	queue  []job
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newWriter(name string, logger logging.Logger, timeout time.Duration) *writer {
	w := &writer{
		name:    name,
		logger:  logger.With("writer", name),
		timeout: timeout,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *writer) enqueue(j job) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errWriterClosed
	}
	w.queue = append(w.queue, j)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// flush returns once every job enqueued before the call has run.
func (w *writer) flush(ctx context.Context) error {
	barrier := make(chan struct{})
	if err := w.enqueue(job{barrier: barrier}); err != nil {
		return nil
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close runs what is queued and stops the goroutine.
func (w *writer) close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
	w.mu.Unlock()
	<-w.done
}

func (w *writer) next() (job, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for len(w.queue) == 0 {
		if w.closed {
			return job{}, false
		}
		w.mu.Unlock()
		<-w.wake
		w.mu.Lock()
	}
	j := w.queue[0]
	w.queue[0] = job{}
	w.queue = w.queue[1:]
	return j, true
}

func (w *writer) loop() {
	defer close(w.done)
	for {
		j, ok := w.next()
		if !ok {
			return
		}
		if j.barrier != nil {
			close(j.barrier)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		if err := j.run(ctx); err != nil {
			w.logger.Warn(ctx, "snapshot write failed", "job", j.desc, "error", err)
		}
		cancel()
	}
}
