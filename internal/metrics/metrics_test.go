package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerOptions(t *testing.T) {
	Convey("Given a manager with custom options", t, func() {
		m := NewManager(
			WithNamespace("test"),
			WithSubsystem("unit"),
			WithHistogramBuckets([]float64{0.1, 1}),
			WithGrouping("instance", "ci"),
		)

		Convey("Then the options are applied", func() {
			So(m.namespace, ShouldEqual, "test")
			So(m.subsystem, ShouldEqual, "unit")
			So(m.histogramBuckets, ShouldResemble, []float64{0.1, 1})
			So(m.grouping, ShouldResemble, map[string]string{"instance": "ci"})
			So(m.Registry(), ShouldNotBeNil)
		})

		Convey("Then empty values keep the defaults", func() {
			d := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithRegistry(nil))
			So(d.namespace, ShouldEqual, "gridiron")
			So(d.subsystem, ShouldEqual, "export")
			So(d.Registry(), ShouldNotBeNil)
		})
	})

	Convey("Given two managers", t, func() {
		Convey("Then each gets its own registry", func() {
			So(func() {
				NewManager()
				NewManager()
			}, ShouldNotPanic)
		})
	})
}

func TestManagerRecording(t *testing.T) {
	Convey("Given a manager", t, func() {
		m := NewManager()

		Convey("When observing API requests", func() {
			m.ObserveRequest("/games", 200, 120*time.Millisecond)
			m.ObserveRequest("/games", 200, 80*time.Millisecond)
			m.ObserveRequest("/games/teams", 500, time.Second)

			Convey("Then requests are counted by endpoint and status", func() {
				So(testutil.ToFloat64(m.requests.WithLabelValues("/games", "200")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.requests.WithLabelValues("/games/teams", "500")), ShouldEqual, 1)
				So(testutil.CollectAndCount(m.requestDuration), ShouldEqual, 2)
			})
		})

		Convey("When observing cache lookups", func() {
			m.ObserveCache("/games", true)
			m.ObserveCache("/games", false)
			m.ObserveCache("/games", false)

			So(testutil.ToFloat64(m.cacheLookups.WithLabelValues("/games", "hit")), ShouldEqual, 1)
			So(testutil.ToFloat64(m.cacheLookups.WithLabelValues("/games", "miss")), ShouldEqual, 2)
		})

		Convey("When recording units and tables", func() {
			m.RecordUnit("team_stats", 120)
			m.RecordUnit("team_stats", 80)
			m.RecordTableRows("games", 1700)

			So(testutil.ToFloat64(m.unitsFetched.WithLabelValues("team_stats")), ShouldEqual, 2)
			So(testutil.ToFloat64(m.recordsFetched.WithLabelValues("team_stats")), ShouldEqual, 200)
			So(testutil.ToFloat64(m.tableRows.WithLabelValues("games")), ShouldEqual, 1700)
		})

		Convey("When recording runs", func() {
			finished := time.Unix(1700000000, 0)
			m.RecordRun(false, 2*time.Second, finished)
			m.RecordRun(true, 3*time.Second, finished)

			So(testutil.ToFloat64(m.runs.WithLabelValues("failure")), ShouldEqual, 1)
			So(testutil.ToFloat64(m.runs.WithLabelValues("success")), ShouldEqual, 1)
			So(testutil.ToFloat64(m.runDuration), ShouldEqual, 3)
			So(testutil.ToFloat64(m.runLastSuccess), ShouldEqual, 1700000000)
		})
	})
}

func TestManagerPush(t *testing.T) {
	Convey("Given a fake Pushgateway", t, func() {
		var (
			mu     sync.Mutex
			method string
			path   string
		)
		var status atomic.Int32
		status.Store(http.StatusOK)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			method, path = r.Method, r.URL.Path
			mu.Unlock()
			w.WriteHeader(int(status.Load()))
		}))
		defer srv.Close()

		m := NewManager(WithGrouping("instance", "ci"))
		m.RecordTableRows("stats", 10)

		Convey("When the push succeeds", func() {
			err := m.Push(context.Background(), srv.URL)

			Convey("Then the job is replaced with a PUT", func() {
				So(err, ShouldBeNil)
				mu.Lock()
				defer mu.Unlock()
				So(method, ShouldEqual, http.MethodPut)
				So(path, ShouldEqual, "/metrics/job/gridiron/instance/ci")
			})
		})

		Convey("When the gateway rejects the push", func() {
			status.Store(http.StatusBadRequest)
			err := m.Push(context.Background(), srv.URL)

			Convey("Then the error wraps ErrPush", func() {
				So(errors.Is(err, ErrPush), ShouldBeTrue)
			})
		})
	})
}
