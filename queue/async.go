package queue

import (
	"context"
	"io"
	"runtime"
	"sync/atomic"

	"github.com/am6737/tunio/reactor"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
)

// DefaultReadRetries is how many times a read is retried under one
// readiness token before the token is cleared and the read re-suspends.
const DefaultReadRetries = 16

// AsyncOption configures an AsyncQueue.
type AsyncOption func(*AsyncQueue)

// WithReadRetries sets the would-block retry budget of a read token. Once
// it is spent the token is cleared and the read waits for the next edge.
// A very large budget makes the read spin on the token instead.
func WithReadRetries(n int) AsyncOption {
	return func(q *AsyncQueue) {
		if n >= 0 {
			q.readRetries = n
		}
	}
}

// WithRegistry records queue counters in r instead of a private registry.
func WithRegistry(r metrics.Registry) AsyncOption {
	return func(q *AsyncQueue) {
		q.registry = r
	}
}

// WithLogger sets the logger used for trace output.
func WithLogger(l *logrus.Logger) AsyncOption {
	return func(q *AsyncQueue) {
		q.l = l
	}
}

// AsyncQueue drives a non-blocking SyncQueue from an edge-triggered reactor.
//
// A read and a write may be in flight at the same time. Two reads, or two
// writes, must not be.
type AsyncQueue struct {
	inner *SyncQueue[NonBlocking]
	reg   *reactor.Registration

	readRetries int
	registry    metrics.Registry
	metrics     *queueMetrics
	l           *logrus.Logger

	released atomic.Bool
}

// NewAsync registers q with r. On failure q is left untouched and still
// owned by the caller.
func NewAsync(r reactor.Reactor, q *SyncQueue[NonBlocking], opts ...AsyncOption) (*AsyncQueue, error) {
	aq := &AsyncQueue{
		inner:       q,
		readRetries: DefaultReadRetries,
	}
	for _, opt := range opts {
		opt(aq)
	}
	if aq.registry == nil {
		aq.registry = metrics.NewRegistry()
	}
	if aq.l == nil {
		aq.l = logrus.StandardLogger()
	}
	aq.metrics = newQueueMetrics(aq.registry)

	reg, err := r.Register(q.Fd())
	if err != nil {
		return nil, err
	}
	aq.reg = reg
	return aq, nil
}

// Blocking always returns false.
func (q *AsyncQueue) Blocking() bool {
	return false
}

// Metrics returns the registry holding the queue counters.
func (q *AsyncQueue) Metrics() metrics.Registry {
	return q.registry
}

// ReadContext reads one frame into p, suspending until the descriptor is
// readable. A would-block is never returned; the read is retried under the
// same readiness token and only re-suspends once the retry budget is spent
// and the token has been cleared.
func (q *AsyncQueue) ReadContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for {
		tok, err := q.reg.Ready(ctx, reactor.Readable)
		if err != nil {
			return 0, err
		}

		for attempt := 0; ; attempt++ {
			n, err := q.inner.Read(p)
			if err == nil {
				if n == 0 {
					return 0, io.EOF
				}
				q.metrics.read(n)
				return n, nil
			}
			if !IsWouldBlock(err) {
				q.metrics.errors.Inc(1)
				return 0, err
			}

			q.metrics.readRetries.Inc(1)
			if attempt >= q.readRetries {
				q.l.WithField("fd", q.inner.Fd()).
					WithField("attempts", attempt+1).
					Trace("read token drained, re-suspending")
				tok.ClearReady()
				break
			}
			runtime.Gosched()
		}
	}
}

// WriteContext writes one frame from p, suspending until the descriptor is
// writable. A would-block clears the token and re-suspends.
func (q *AsyncQueue) WriteContext(ctx context.Context, p []byte) (int, error) {
	for {
		tok, err := q.reg.Ready(ctx, reactor.Writable)
		if err != nil {
			return 0, err
		}

		n, err := q.inner.Write(p)
		if err == nil {
			q.metrics.write(n)
			return n, nil
		}
		if !IsWouldBlock(err) {
			q.metrics.errors.Inc(1)
			return 0, err
		}

		q.metrics.resuspends.Inc(1)
		tok.ClearReady()
	}
}

// FlushContext waits for write readiness. Nothing is buffered in user space,
// so there is nothing else to flush.
func (q *AsyncQueue) FlushContext(ctx context.Context) error {
	_, err := q.reg.Ready(ctx, reactor.Writable)
	return err
}

// Read implements io.Reader.
func (q *AsyncQueue) Read(p []byte) (int, error) {
	return q.ReadContext(context.Background(), p)
}

// Write implements io.Writer.
func (q *AsyncQueue) Write(p []byte) (int, error) {
	return q.WriteContext(context.Background(), p)
}

// Shutdown always fails with ErrUnimplemented.
func (q *AsyncQueue) Shutdown() error {
	return ErrUnimplemented
}

// Release deregisters the queue from the reactor and hands back the
// underlying SyncQueue. Pending operations fail with reactor.ErrClosed.
// The descriptor then belongs to the caller and Close no longer touches it.
func (q *AsyncQueue) Release() (*SyncQueue[NonBlocking], error) {
	if err := q.reg.Deregister(); err != nil {
		return nil, err
	}
	q.released.Store(true)
	return q.inner, nil
}

// Close deregisters the queue and closes the descriptor. It is a no-op
// after Release.
func (q *AsyncQueue) Close() error {
	if q.released.Load() {
		return nil
	}
	if err := q.reg.Deregister(); err != nil {
		q.l.WithError(err).Warn("failed to deregister queue")
	}
	return q.inner.Close()
}
