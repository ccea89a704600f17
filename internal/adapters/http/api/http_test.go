package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	service "github.com/okian/repsense/internal/app"
	"github.com/okian/repsense/internal/domain/capability"
	"github.com/okian/repsense/internal/domain/fixture"
	"github.com/okian/repsense/internal/domain/ingest"
	"github.com/okian/repsense/internal/domain/model"
	"github.com/okian/repsense/pkg/logger"

	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type mockSession struct {
	ingestErr    error
	ingested     []model.SensorSample
	recalErr     error
	recalCalls   int
	reachability []capability.Reachability
	advance      bool
	status       service.Status
	stats        map[string]interface{}
}

func (m *mockSession) Ingest(s model.SensorSample) error {
	if m.ingestErr != nil {
		return m.ingestErr
	}
	m.ingested = append(m.ingested, s)
	return nil
}

func (m *mockSession) ObserveWearable(_ context.Context, r capability.Reachability) bool {
	m.reachability = append(m.reachability, r)
	return m.advance
}

func (m *mockSession) Recalibrate(context.Context) error {
	m.recalCalls++
	return m.recalErr
}

func (m *mockSession) Status() service.Status           { return m.status }
func (m *mockSession) GetStats() map[string]interface{} { return m.stats }

func newMux(s Session, cues http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	NewServer(s, cues).Register(context.Background(), mux)
	return mux
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) errorResponse {
	var e errorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	return e
}

const cameraBody = `{"source":"camera","timestamp_ms":33.5,"joints":{"left_hip":{"x":0.1,"y":1,"z":0,"confidence":0.9}}}`

func TestServer_Register(t *testing.T) {
	Convey("Given a server over a mock session", t, func() {
		sess := &mockSession{
			stats:  map[string]interface{}{"ticks": 7},
			status: service.Status{Exercise: "squat", Mode: "full_fusion", Phase: "standing"},
		}
		cues := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
		mux := newMux(sess, cues)

		Convey("Then health serves Prometheus metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "repsense_fusion_ticks_total")
		})

		Convey("Then stats and status return JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			So(w.Body.String(), ShouldContainSubstring, `"ticks":7`)

			w = do(mux, http.MethodGet, "/status", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var st service.Status
			So(json.Unmarshal(w.Body.Bytes(), &st), ShouldBeNil)
			So(st.Mode, ShouldEqual, "full_fusion")
			So(st.Phase, ShouldEqual, "standing")
		})

		Convey("Then wrong methods are not found", func() {
			So(do(mux, http.MethodPost, "/stats", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/samples", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/calibrate", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then the cue stream is mounted", func() {
			So(do(mux, http.MethodGet, "/ws/cues", "").Code, ShouldEqual, http.StatusTeapot)
		})

		Convey("Then unknown paths are not found", func() {
			So(do(mux, http.MethodGet, "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given a server without a cue stream", t, func() {
		mux := newMux(&mockSession{}, nil)

		Convey("Then the stream route is absent", func() {
			So(do(mux, http.MethodGet, "/ws/cues", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestHandlePostSample(t *testing.T) {
	Convey("Given a samples endpoint", t, func() {
		sess := &mockSession{}
		mux := newMux(sess, nil)

		Convey("When a camera sample is posted", func() {
			w := do(mux, http.MethodPost, "/samples", cameraBody)

			Convey("Then it is accepted and converted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(sess.ingested, ShouldHaveLength, 1)
				s := sess.ingested[0]
				So(s.Source, ShouldEqual, model.SourceCamera)
				So(s.Timestamp, ShouldEqual, 33500*time.Microsecond)
				So(s.Pose.Joints[model.JointLeftHip].Confidence, ShouldEqual, 0.9)
				So(s.Pose.Joints[model.JointNose].Confidence, ShouldEqual, 0)
			})
		})

		Convey("When a motion sample is posted", func() {
			w := do(mux, http.MethodPost, "/samples", `{"source":"watch","timestamp_ms":10,"orientation":{"w":1}}`)

			Convey("Then the orientation is carried", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(sess.ingested[0].Motion.Orientation, ShouldResemble, model.Quat{W: 1})
			})
		})

		Convey("When the body is malformed", func() {
			for _, body := range []string{
				`{`,
				`{"source":"lidar","timestamp_ms":1}`,
				`{"source":"camera","timestamp_ms":-1,"joints":{"nose":{}}}`,
				`{"source":"camera","timestamp_ms":1}`,
				`{"source":"camera","timestamp_ms":1,"joints":{"tail":{}}}`,
				`{"source":"headphone","timestamp_ms":1}`,
			} {
				w := do(mux, http.MethodPost, "/samples", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w).Code, ShouldEqual, "bad_request")
			}
			So(sess.ingested, ShouldBeEmpty)
		})

		Convey("When the session rejects the sample", func() {
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{service.ErrNotStarted, http.StatusConflict, "not_started"},
				{fmt.Errorf("%w: watch", ingest.ErrSourceDisabled), http.StatusConflict, "source_disabled"},
				{fmt.Errorf("%w: camera", ingest.ErrOutOfOrder), http.StatusConflict, "out_of_order"},
				{fmt.Errorf("%w: bad", ingest.ErrInvalidSample), http.StatusBadRequest, "invalid_sample"},
				{errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
			}
			for _, c := range cases {
				sess.ingestErr = c.err
				w := do(mux, http.MethodPost, "/samples", cameraBody)
				So(w.Code, ShouldEqual, c.status)
				So(decodeError(w).Code, ShouldEqual, c.code)
			}
		})
	})
}

func TestSessionControl(t *testing.T) {
	Convey("Given session control endpoints", t, func() {
		sess := &mockSession{advance: true}
		mux := newMux(sess, nil)

		Convey("When recalibration succeeds", func() {
			w := do(mux, http.MethodPost, "/calibrate", "")
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(sess.recalCalls, ShouldEqual, 1)
		})

		Convey("When recalibration hits a pipeline error", func() {
			sess.recalErr = model.NewError("capability.probe", model.KindCapabilityUnavailable, "camera unavailable")
			w := do(mux, http.MethodPost, "/calibrate", "")

			Convey("Then the error kind is the response code", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decodeError(w).Code, ShouldEqual, "capability_unavailable")
			})
		})

		Convey("When the session is not started", func() {
			sess.recalErr = service.ErrNotStarted
			So(decodeError(do(mux, http.MethodPost, "/calibrate", "")).Code, ShouldEqual, "not_started")
		})

		Convey("When a wearable edge is posted", func() {
			w := do(mux, http.MethodPost, "/wearable", `{"reachability":"ready"}`)

			Convey("Then the parsed state reaches the session", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"advanced":true`)
				So(sess.reachability, ShouldResemble, []capability.Reachability{capability.Ready})
			})
		})

		Convey("When the wearable state is unknown", func() {
			So(do(mux, http.MethodPost, "/wearable", `{"reachability":"maybe"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/wearable", `not json`).Code, ShouldEqual, http.StatusBadRequest)
			So(sess.reachability, ShouldBeEmpty)
		})
	})
}

func TestServerWithService(t *testing.T) {
	Convey("Given a running session without a camera", t, func() {
		svc, err := service.New(
			service.WithManualTicks(),
			service.WithProber(capability.StaticProber{Headphone: true}),
		)
		So(err, ShouldBeNil)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		mux := newMux(svc, nil)

		Convey("Then status reports the capability failure", func() {
			var st service.Status
			So(json.Unmarshal(do(mux, http.MethodGet, "/status", "").Body.Bytes(), &st), ShouldBeNil)
			So(st.Started, ShouldBeTrue)
			So(st.ErrorKind, ShouldEqual, "capability_unavailable")
		})

		Convey("Then recalibration is refused with the same kind", func() {
			w := do(mux, http.MethodPost, "/calibrate", "")
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(decodeError(w).Code, ShouldEqual, "capability_unavailable")
		})
	})

	Convey("Given a running session with camera and headphone", t, func() {
		svc, err := service.New(
			service.WithManualTicks(),
			service.WithProber(capability.StaticProber{Camera: true, Headphone: true}),
		)
		So(err, ShouldBeNil)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		mux := newMux(svc, nil)

		Convey("When a standing pose is posted as JSON", func() {
			pose := fixture.Pose(fixture.Standing())
			joints := map[string]keypointRequest{}
			for j := model.Joint(0); j < model.JointCount; j++ {
				kp := pose.Joints[j]
				joints[j.String()] = keypointRequest{X: kp.Position.X, Y: kp.Position.Y, Z: kp.Position.Z, Confidence: kp.Confidence}
			}
			body, _ := json.Marshal(sampleRequest{Source: "camera", TimestampMS: 1, Joints: joints})

			Convey("Then the sample is ingested once and a replay is out of order", func() {
				So(do(mux, http.MethodPost, "/samples", string(body)).Code, ShouldEqual, http.StatusAccepted)
				w := do(mux, http.MethodPost, "/samples", string(body))
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decodeError(w).Code, ShouldEqual, "out_of_order")
			})
		})

		Convey("When a watch sample arrives for the unpaired watch", func() {
			w := do(mux, http.MethodPost, "/samples", `{"source":"watch","timestamp_ms":1,"orientation":{"w":1}}`)

			Convey("Then it is rejected as a disabled source", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decodeError(w).Code, ShouldEqual, "source_disabled")
			})
		})
	})
}
