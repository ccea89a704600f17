package ws_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/repsense/internal/adapters/ws"
	"github.com/okian/repsense/internal/domain/cue"
	"github.com/okian/repsense/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/gorilla/websocket"
)

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

func dial(srv *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	So(err, ShouldBeNil)
	return conn
}

func TestHub(t *testing.T) {
	Convey("Given a running hub behind an HTTP server", t, func() {
		hub := ws.NewHub(ws.WithLogger(logger.Nop()))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go hub.Run(ctx)
		srv := httptest.NewServer(hub)
		defer srv.Close()

		Convey("With no clients, emitting succeeds", func() {
			So(hub.Emit(ctx, cue.Event{ID: "x"}), ShouldBeNil)
			So(hub.ClientCount(), ShouldEqual, 0)
		})

		Convey("Connected clients receive cues as JSON", func() {
			a, b := dial(srv), dial(srv)
			defer a.Close()
			defer b.Close()
			So(waitFor(func() bool { return hub.ClientCount() == 2 }), ShouldBeTrue)

			ev := cue.Event{ID: "e1", RuleID: "squat_knee_cave", Priority: 3,
				Channels: []cue.Channel{cue.ChannelBanner}, Severity: cue.SeverityWarning}
			So(hub.Emit(ctx, ev), ShouldBeNil)

			for _, c := range []*websocket.Conn{a, b} {
				_ = c.SetReadDeadline(time.Now().Add(time.Second))
				_, data, err := c.ReadMessage()
				So(err, ShouldBeNil)
				var got map[string]any
				So(json.Unmarshal(data, &got), ShouldBeNil)
				So(got["ruleId"], ShouldEqual, "squat_knee_cave")
				So(got["severity"], ShouldEqual, "warning")
				So(got["channels"], ShouldResemble, []any{"banner"})
			}
		})

		Convey("Disconnected clients are forgotten", func() {
			c := dial(srv)
			So(waitFor(func() bool { return hub.ClientCount() == 1 }), ShouldBeTrue)
			_ = c.Close()
			So(waitFor(func() bool { return hub.ClientCount() == 0 }), ShouldBeTrue)
		})

		Convey("After shutdown clients are closed and emits fail", func() {
			c := dial(srv)
			defer c.Close()
			So(waitFor(func() bool { return hub.ClientCount() == 1 }), ShouldBeTrue)
			hub.Close()
			So(waitFor(func() bool { return hub.ClientCount() == 0 }), ShouldBeTrue)
			So(waitFor(func() bool { return errors.Is(hub.Emit(ctx, cue.Event{}), ws.ErrClosed) }), ShouldBeTrue)

			_ = c.SetReadDeadline(time.Now().Add(time.Second))
			_, _, err := c.ReadMessage()
			So(err, ShouldNotBeNil)
		})
	})
}
