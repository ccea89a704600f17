package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given an initialized logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithOutput(&buf)), ShouldBeNil)
		defer func() { _ = Init() }()

		ctx := context.Background()

		Convey("When logging at info level", func() {
			Get().Info(ctx, "tick complete", Int("tick", 3), Duration("latency", 2*time.Millisecond))

			Convey("Then the record carries the fields and the caller", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "tick complete")
				So(out, ShouldContainSubstring, "tick=3")
				So(out, ShouldContainSubstring, "source=")
				So(out, ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When logging below the configured level", func() {
			So(SetLevelString("warn"), ShouldBeNil)
			Get().Info(ctx, "hidden")
			Get().Warn(ctx, "shown", Error(errors.New("boom")))

			Convey("Then only the warn record is written", func() {
				So(buf.String(), ShouldNotContainSubstring, "hidden")
				So(buf.String(), ShouldContainSubstring, "boom")
			})
		})

		Convey("When using a named logger with fixed fields", func() {
			Named("fusion").With(String("session", "s-1")).Info(ctx, "named", Bool("degraded", true))

			Convey("Then the group and fields are present", func() {
				So(buf.String(), ShouldContainSubstring, "fusion.")
				So(buf.String(), ShouldContainSubstring, "s-1")
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		So(SetLevelString("debug"), ShouldBeNil)
		So(SetLevelString(" WARNING "), ShouldBeNil)
		So(SetLevelString(""), ShouldBeNil)
		So(SetLevelString("verbose"), ShouldNotBeNil)
	})
}

func TestNop(t *testing.T) {
	Convey("Given a nop logger", t, func() {
		l := Nop()
		So(func() { l.Error(context.Background(), "discarded") }, ShouldNotPanic)
		So(l.Named("x"), ShouldNotBeNil)
	})
}
