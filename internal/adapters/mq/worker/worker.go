// Package worker delivers queued cue events to presentation sinks off the
// tick path.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/repsense/internal/adapters/mq/queue"
	"github.com/okian/repsense/internal/domain/cue"
	"github.com/okian/repsense/pkg/logger"
	"github.com/okian/repsense/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultSinkTimeout    = 250 * time.Millisecond
	workerShutdownTimeout = 5 * time.Second
)

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Event
}

// Sink is a named cue destination. The name labels logs and metrics.
type Sink struct {
	Name string
	Sink cue.Sink
}

// Worker delivers events until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the event in flight.
	Shutdown(ctx context.Context) error
}

// Dispatcher fans every dequeued event out to its sinks in order.
type Dispatcher struct {
	queue       Queue
	sinks       []Sink
	sinkTimeout time.Duration

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewDispatcher creates a dispatcher reading from q.
func NewDispatcher(q Queue, sinks []Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:       q,
		sinks:       append([]Sink(nil), sinks...),
		sinkTimeout: defaultSinkTimeout,
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger.Get().Named("dispatcher"),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Run starts the delivery loop.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	events := d.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.deliver(ctx, ev)
		}
	}
}

// Shutdown signals the loop and waits for it to exit.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	select {
	case <-d.shutdown:
	default:
		close(d.shutdown)
	}

	ctx, cancel := context.WithTimeout(ctx, workerShutdownTimeout)
	defer cancel()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// deliver hands ev to every sink. A failing sink does not stop the others.
func (d *Dispatcher) deliver(ctx context.Context, ev queue.Event) { //nolint:gocritic // hugeParam: Event is passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordDispatchLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	for _, s := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, d.sinkTimeout)
		err := s.Sink.Emit(sctx, ev)
		cancel()
		if err != nil {
			metrics.RecordSinkError(s.Name)
			d.logger.Error(ctx, "cue delivery failed",
				logger.String("sink", s.Name),
				logger.String("rule", ev.RuleID),
				logger.Error(err),
			)
		}
	}
}
