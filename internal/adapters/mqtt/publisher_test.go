package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/repsense/internal/domain/telemetry"

	paho "github.com/eclipse/paho.mqtt.golang"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func pendingToken() *fakeToken { return &fakeToken{done: make(chan struct{})} }

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	sent         []published
	next         func() paho.Token
	disconnected int
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	if c.next != nil {
		return c.next()
	}
	return completedToken(nil)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.disconnected++
	c.mu.Unlock()
}

func TestPublisher(t *testing.T) {
	Convey("Given a publisher over a fake client", t, func() {
		client := &fakeClient{}
		p := New(client, "repsense/telemetry", WithQoS(1), WithRetained(true))
		payload := telemetry.Payload{IsTracking: true, Reps: 3, Tracking: telemetry.TrackingActive, Phase: "bottom", Exercise: "squat"}

		Convey("When a payload is published", func() {
			err := p.Publish(context.Background(), payload)

			Convey("Then the JSON body reaches the topic with the configured QoS", func() {
				So(err, ShouldBeNil)
				So(client.sent, ShouldHaveLength, 1)
				So(client.sent[0].topic, ShouldEqual, "repsense/telemetry")
				So(client.sent[0].qos, ShouldEqual, 1)
				So(client.sent[0].retained, ShouldBeTrue)

				var got map[string]any
				So(json.Unmarshal(client.sent[0].payload, &got), ShouldBeNil)
				So(got["reps"], ShouldEqual, float64(3))
				So(got["tracking"], ShouldEqual, "active")
				So(got["isTracking"], ShouldEqual, true)
			})
		})

		Convey("When the broker rejects the publish", func() {
			boom := errors.New("not authorized")
			client.next = func() paho.Token { return completedToken(boom) }

			Convey("Then the token error is returned", func() {
				So(errors.Is(p.Publish(context.Background(), payload), boom), ShouldBeTrue)
			})
		})

		Convey("When the broker never acknowledges", func() {
			client.next = func() paho.Token { return pendingToken() }
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			start := time.Now()
			err := p.Publish(ctx, payload)

			Convey("Then publish returns at the context deadline", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				So(time.Since(start), ShouldBeLessThan, time.Second)
			})
		})

		Convey("When the publisher is closed twice", func() {
			p.Close()
			p.Close()

			Convey("Then the client disconnects once and publishing fails", func() {
				So(client.disconnected, ShouldEqual, 1)
				So(errors.Is(p.Publish(context.Background(), payload), ErrClosed), ShouldBeTrue)
			})
		})
	})

	Convey("Given invalid options", t, func() {
		p := New(&fakeClient{}, "t", WithQoS(7), WithLogger(nil))

		Convey("Then defaults are kept", func() {
			So(p.qos, ShouldEqual, 0)
			So(p.logger, ShouldNotBeNil)
		})
	})

	Convey("Given no broker address", t, func() {
		_, err := Dial(context.Background(), "", "id", "t")

		Convey("Then dialing fails fast", func() {
			So(errors.Is(err, ErrNoBroker), ShouldBeTrue)
		})
	})
}
