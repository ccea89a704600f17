package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/repsense/internal/adapters/mq/queue"
	"github.com/okian/repsense/internal/adapters/mq/worker"
	"github.com/okian/repsense/internal/domain/cue"
	logging "github.com/okian/repsense/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	eventChan chan queue.Event
}

func newMockQueue() *mockQueue {
	return &mockQueue{eventChan: make(chan queue.Event, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Event {
	return mq.eventChan
}

// waitFor polls cond until it holds or a second passes.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestDispatcher(t *testing.T) {
	convey.Convey("Given a dispatcher with two sinks", t, func() {
		q := newMockQueue()
		first := cue.NewRecorder(8)
		second := cue.NewRecorder(8)
		d := worker.NewDispatcher(q, []worker.Sink{
			{Name: "first", Sink: first},
			{Name: "second", Sink: second},
		}, worker.WithLogger(logging.Nop()))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go d.Run(ctx)

		convey.Convey("When an event is queued", func() {
			q.eventChan <- cue.Event{ID: "e1", RuleID: "squat_chest_up"}

			convey.Convey("Then every sink receives it", func() {
				convey.So(waitFor(func() bool { return len(first.Events()) == 1 && len(second.Events()) == 1 }), convey.ShouldBeTrue)
				convey.So(second.Events()[0].RuleID, convey.ShouldEqual, "squat_chest_up")
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer shutdownCancel()

			convey.So(d.Shutdown(shutdownCtx), convey.ShouldBeNil)
			convey.So(d.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a failing sink ahead of a healthy one", t, func() {
		q := newMockQueue()
		var calls atomic.Int32
		failing := cue.SinkFunc(func(context.Context, cue.Event) error {
			calls.Add(1)
			return errors.New("speaker offline")
		})
		healthy := cue.NewRecorder(4)
		d := worker.NewDispatcher(q, []worker.Sink{
			{Name: "speech", Sink: failing},
			{Name: "banner", Sink: healthy},
		}, worker.WithLogger(logging.Nop()))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go d.Run(ctx)

		q.eventChan <- cue.Event{ID: "e1"}
		q.eventChan <- cue.Event{ID: "e2"}

		convey.Convey("Then delivery continues past the failure", func() {
			convey.So(waitFor(func() bool { return len(healthy.Events()) == 2 }), convey.ShouldBeTrue)
			convey.So(calls.Load(), convey.ShouldEqual, 2)
		})
	})

	convey.Convey("Given a sink slower than the sink timeout", t, func() {
		q := newMockQueue()
		sawDeadline := make(chan bool, 1)
		slow := cue.SinkFunc(func(ctx context.Context, _ cue.Event) error {
			<-ctx.Done()
			sawDeadline <- errors.Is(ctx.Err(), context.DeadlineExceeded)
			return ctx.Err()
		})
		d := worker.NewDispatcher(q, []worker.Sink{{Name: "slow", Sink: slow}},
			worker.WithSinkTimeout(20*time.Millisecond), worker.WithLogger(logging.Nop()))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go d.Run(ctx)
		q.eventChan <- cue.Event{ID: "late"}

		convey.Convey("Then the call is cut off at the deadline", func() {
			select {
			case ok := <-sawDeadline:
				convey.So(ok, convey.ShouldBeTrue)
			case <-time.After(time.Second):
				convey.So("sink never timed out", convey.ShouldBeEmpty)
			}
		})
	})

	convey.Convey("Given a closed queue", t, func() {
		q := newMockQueue()
		close(q.eventChan)
		d := worker.NewDispatcher(q, nil, worker.WithLogger(logging.Nop()))
		done := make(chan struct{})
		go func() {
			d.Run(context.Background())
			close(done)
		}()

		convey.Convey("Then the loop exits on its own", func() {
			select {
			case <-done:
			case <-time.After(time.Second):
				convey.So("dispatcher kept running", convey.ShouldBeEmpty)
			}
		})
	})
}

func TestDispatcherWithQueue(t *testing.T) {
	convey.Convey("Given the in-memory queue feeding a dispatcher", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		rec := cue.NewRecorder(8)
		d := worker.NewDispatcher(q, []worker.Sink{{Name: "recorder", Sink: rec}}, worker.WithLogger(logging.Nop()))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go d.Run(ctx)

		for _, id := range []string{"a", "b", "c"} {
			convey.So(q.Enqueue(ctx, cue.Event{ID: id}), convey.ShouldBeTrue)
		}

		convey.Convey("Then events arrive in emission order", func() {
			convey.So(waitFor(func() bool { return len(rec.Events()) == 3 }), convey.ShouldBeTrue)
			ids := []string{}
			for _, e := range rec.Events() {
				ids = append(ids, e.ID)
			}
			convey.So(ids, convey.ShouldResemble, []string{"a", "b", "c"})
		})
	})
}
