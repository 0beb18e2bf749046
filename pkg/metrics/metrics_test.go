package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(m, ShouldNotBeNil)
				m.levelUps.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_level_ups_total")
			})
		})
	})
}

func TestRecordingHelpers(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording XP awards", func() {
			before := testutil.ToFloat64(globalManager.xpAwarded.WithLabelValues("message"))
			RecordXPAwarded("message", 12)
			RecordXPAwarded("message", 0)
			RecordXPAwarded("message", -4)

			Convey("Then only positive amounts are added", func() {
				after := testutil.ToFloat64(globalManager.xpAwarded.WithLabelValues("message"))
				So(after-before, ShouldEqual, 12)
			})
		})

		Convey("When recording role mutations", func() {
			before := testutil.ToFloat64(globalManager.roleMutations.WithLabelValues("grant", "failed"))
			RecordRoleMutation("grant", "failed")

			Convey("Then the labelled counter moves", func() {
				after := testutil.ToFloat64(globalManager.roleMutations.WithLabelValues("grant", "failed"))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When updating gauges", func() {
			UpdateTrackedUsers(42)
			UpdateQueueSize(7)
			UpdateWorkerCount(3)

			Convey("Then they hold the last value", func() {
				So(testutil.ToFloat64(globalManager.trackedUsers), ShouldEqual, 42)
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 3)
			})
		})

		Convey("When recording the remaining helpers", func() {
			So(func() {
				RecordCooldownRejection()
				RecordLevelUp()
				RecordStarboardAction("create_promotion")
				RecordPersistenceFailure("ledger")
				RecordGatewayEvent("message", "accepted")
				RecordEventDuplicate()
				RecordEventLatency("reaction", 3)
				RecordHTTPRequest("/leaderboard", "GET", "200")
				RecordHTTPRequestDuration("/leaderboard", "GET", "200", 1.5)
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(10)
			}, ShouldNotPanic)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
