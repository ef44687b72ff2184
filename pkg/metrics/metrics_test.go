package metrics

import (
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it uses the calibrate namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "calibrate")
				So(manager.subsystem, ShouldEqual, "engine")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 2}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the new names", func() {
				manager.FlowStarted()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_flows_started_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty options are passed", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithConstLabels(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "calibrate")
				So(manager.latencyBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a manager on an isolated registry", t, func() {
		m := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

		Convey("When flows finish", func() {
			m.FlowFinished(ResultCompleted, "")
			m.FlowFinished(ResultFailed, "insufficient_rated_items")
			m.FlowFinished(ResultFailed, "insufficient_rated_items")

			Convey("Then results and failure reasons are counted", func() {
				So(testutil.ToFloat64(m.flowsFinished.WithLabelValues(ResultCompleted)), ShouldEqual, 1)
				So(testutil.ToFloat64(m.flowsFinished.WithLabelValues(ResultFailed)), ShouldEqual, 2)
				So(testutil.ToFloat64(m.flowFailures.WithLabelValues("insufficient_rated_items")), ShouldEqual, 2)
			})
		})

		Convey("When comparisons resolve", func() {
			m.ComparisonResolved(1, "a_wins", 0.5, 0, false)
			m.ComparisonResolved(2, "a_wins", 3.6, 0.5, true)

			Convey("Then outcomes and upsets are counted", func() {
				So(testutil.ToFloat64(m.comparisons.WithLabelValues("1", "a_wins")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.comparisons.WithLabelValues("2", "a_wins")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.upsets), ShouldEqual, 1)
			})
		})

		Convey("When persistence writes are recorded", func() {
			m.PersistenceWrite(nil)
			m.PersistenceWrite(errors.New("boom"))
			m.PersistenceWrite(errors.New("boom"))

			Convey("Then ok and error writes are split", func() {
				So(testutil.ToFloat64(m.persistenceWrites.WithLabelValues("ok")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.persistenceWrites.WithLabelValues("error")), ShouldEqual, 2)
			})
		})

		Convey("When sessions change", func() {
			m.SetActiveSessions(4)
			m.SessionsExpired(2)

			Convey("Then gauges and counters reflect it", func() {
				So(testutil.ToFloat64(m.activeSessions), ShouldEqual, 4)
				So(testutil.ToFloat64(m.sessionsExpired), ShouldEqual, 2)
			})
		})
	})
}

func TestGlobalHelpers(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When package helpers are called concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					RecordFlowStarted()
					RecordQueueEnqueue()
					RecordQueueEnqueueError("full")
					RecordHTTPRequest("sessions", "POST", "201")
					RecordHTTPRequestDuration("sessions", "POST", "201", 1.5)
					RecordRepositoryQueryLatency(0.1)
					RecordWorkerApplyLatency(0.2)
				}()
			}
			wg.Wait()

			Convey("Then the custom registry gathers without error", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				So(Global(), ShouldNotBeNil)
			})
		})
	})
}
