package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			opts := []Option{
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithMetricPrefix("test_prefix"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(5 * time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
			}

			Convey("Then they should be valid functions", func() {
				for _, opt := range opts {
					So(opt, ShouldNotBeNil)
				}
			})
		})
	})
}

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithMetricPrefix("test_prefix"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithRefreshInterval(10*time.Second),
				WithCustomLabels(map[string]string{"env": "test", "version": "1.0"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the collectors should be registered under the configured names", func() {
				So(manager, ShouldNotBeNil)
				So(manager.refreshInterval, ShouldEqual, 10*time.Second)

				manager.RecordEvaluation(OutcomeOK)
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var found bool
				for _, f := range families {
					if f.GetName() == "test_namespace_test_subsystem_test_prefix_evaluations_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestManagerBuckets(t *testing.T) {
	Convey("Given unsorted delta buckets", t, func() {
		registry := prometheus.NewRegistry()
		in := []float64{500, -100, 0}
		manager := NewManager(WithPrometheusRegistry(registry), WithDeltaBuckets(in))

		Convey("Then the manager should keep a sorted copy", func() {
			So(manager.deltaBuckets, ShouldResemble, []float64{-100, 0, 500})
			So(in[0], ShouldEqual, 500.0)
		})

		Convey("Then recorded deltas should land in the histogram", func() {
			manager.RecordRatingDelta(-60)
			var out dto.Metric
			So(manager.ratingDelta.Write(&out), ShouldBeNil)
			So(out.Histogram.GetSampleCount(), ShouldEqual, uint64(1))
			So(out.Histogram.GetSampleSum(), ShouldEqual, -60.0)
		})
	})

	Convey("Given custom labels", t, func() {
		labels := map[string]string{"env": "test"}
		manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()), WithCustomLabels(labels))
		labels["env"] = "changed"

		Convey("Then later changes to the caller's map should not leak in", func() {
			So(manager.customLabels["env"], ShouldEqual, "test")
		})
	})
}

func TestManagerRecording(t *testing.T) {
	Convey("Given a manager on an isolated registry", t, func() {
		registry := prometheus.NewRegistry()
		manager := NewManager(WithPrometheusRegistry(registry))

		Convey("When recording evaluations", func() {
			manager.RecordEvaluation(OutcomeOK)
			manager.RecordEvaluation(OutcomeOK)
			manager.RecordEvaluation(OutcomeInvalidInput)

			Convey("Then counts should be kept per outcome", func() {
				So(collected(manager.evaluations.WithLabelValues(OutcomeOK)), ShouldEqual, 2.0)
				So(collected(manager.evaluations.WithLabelValues(OutcomeInvalidInput)), ShouldEqual, 1.0)
			})
		})

		Convey("When recording a delta", func() {
			manager.RecordRatingDelta(1740)

			Convey("Then the last delta gauge should hold it", func() {
				So(collected(manager.lastRatingDelta), ShouldEqual, 1740.0)
			})
		})

		Convey("When recording a known stage", func() {
			err := manager.RecordStage(StageFloor)

			Convey("Then it should be counted", func() {
				So(err, ShouldBeNil)
				So(collected(manager.stagesTriggered.WithLabelValues(StageFloor)), ShouldEqual, 1.0)
			})
		})

		Convey("When recording an unknown stage", func() {
			err := manager.RecordStage("bogus")

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, ErrObserveFailed), ShouldBeTrue)
			})
		})

		Convey("When metrics are disabled", func() {
			disabled := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()), WithMetricsEnabled(false))
			disabled.RecordEvaluation(OutcomeOK)

			Convey("Then nothing should be counted", func() {
				So(collected(disabled.evaluations.WithLabelValues(OutcomeOK)), ShouldEqual, 0.0)
			})
		})
	})
}

func TestGlobalRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("Then recording helpers should not panic", func() {
			So(func() {
				RecordEvaluation(OutcomeOK)
				RecordRatingDelta(-60)
				RecordEvaluationLatency(0.2)
				_ = RecordStage(StageHintPenalty)
				RecordHTTPRequest("/rating-adjustment", "POST", "200")
				RecordHTTPRequestDuration("/rating-adjustment", "POST", "200", 1.5)
				RecordErrorByType("client_error", "medium")
				RecordErrorByEndpoint("/rating-adjustment", "POST", "client_error")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(8)
				RecordSystemGCPauseTime(0.3)
				UpdateQueueSize(3)
				UpdateWorkerActiveCount(4)
			}, ShouldNotPanic)
		})

		Convey("When reconfigured with a namespace", func() {
			Configure(WithNamespace("reconfigured"))
			RecordEvaluation(OutcomeOK)

			Convey("Then the registry should expose the new names", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(strings.Join(names, ","), ShouldContainSubstring, "reconfigured_calculator_evaluations_total")
				So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

// collected reads the current value of a counter or gauge.
func collected(m prometheus.Metric) float64 {
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		panic(err)
	}
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	}
	return 0
}
