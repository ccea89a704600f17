package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "repsense")
				So(manager.subsystem, ShouldEqual, "fusion")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("sub"),
				WithMetricPrefix("pre"),
				WithHistogramBuckets([]float64{1, 2, 3}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options are applied", func() {
				So(manager.namespace, ShouldEqual, "test")
				So(manager.subsystem, ShouldEqual, "sub")
				So(manager.histogramBuckets, ShouldResemble, []float64{1, 2, 3})
				So(manager.name("ticks_total"), ShouldEqual, "pre_ticks_total")
			})

			Convey("And the metrics are registered on the given registry", func() {
				manager.ticksTotal.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_sub_pre_ticks_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty option values are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "repsense")
				So(manager.histogramBuckets, ShouldResemble, defaultLatencyBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording tick metrics", func() {
			before := testutil.ToFloat64(globalManager.ticksTotal)
			RecordTick(3.5)
			RecordDegradedTick()
			UpdateConfidence(0.8)

			Convey("Then counters and gauges move", func() {
				So(testutil.ToFloat64(globalManager.ticksTotal), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.fusedConf), ShouldEqual, 0.8)
			})
		})

		Convey("When updating the degradation mode gauge", func() {
			modes := []string{"visual_only", "full_fusion"}
			UpdateDegradationMode("full_fusion", modes)

			Convey("Then exactly the active mode is set", func() {
				So(testutil.ToFloat64(globalManager.modeGauge.WithLabelValues("full_fusion")), ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.modeGauge.WithLabelValues("visual_only")), ShouldEqual, 0)
			})
		})

		Convey("When recording labelled events", func() {
			So(func() {
				RecordSampleIngested("camera")
				RecordSampleDropped("watch", "stale")
				UpdateBufferFill("camera", 3)
				RecordCalibrationOutcome("calibrated")
				UpdateCalibrationConfidence(0.9)
				RecordDriftDetected()
				RecordPhaseTransition("squat", "standing", "descending")
				RecordInvalidTransition("squat")
				RecordRep("squat")
				RecordCueEmitted("knee_cave")
				RecordSinkError("ws")
				UpdateDispatchQueueSize(2)
				RecordDispatchDropped("full")
				RecordDispatchLatency(0.4)
				RecordUnsupportedEdge("enter")
				RecordTelemetryPublished()
				RecordTelemetryError()
				RecordHTTPRequest("/stats", "GET", "200")
				RecordHTTPRequestDuration("/stats", "GET", "200", 1.2)
				RecordHTTPError("/samples", "POST", "client_error", "medium")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("When reading the registry", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
