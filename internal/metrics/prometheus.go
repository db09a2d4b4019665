package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Job is the Pushgateway job name runs are pushed under.
const Job = "gridiron"

// Manager owns the metrics of one process. It satisfies cfbd.Observer.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry
	grouping         map[string]string

	// Fetch
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	unitsFetched    *prometheus.CounterVec
	recordsFetched  *prometheus.CounterVec

	// Output
	tableRows *prometheus.GaugeVec

	// Run
	runDuration    prometheus.Gauge
	runLastSuccess prometheus.Gauge
	runs           *prometheus.CounterVec
}

// NewManager creates a metrics manager on its own registry unless
// WithRegistry says otherwise.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gridiron",
		subsystem:        "export",
		histogramBuckets: prometheus.DefBuckets,
		grouping:         make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.requests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "api_requests_total",
		Help:      "CollegeFootballData API requests by endpoint and status code",
	}, []string{"endpoint", "status_code"})

	m.requestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "api_request_duration_seconds",
		Help:      "CollegeFootballData API request latency",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint"})

	m.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_lookups_total",
		Help:      "Response cache lookups by endpoint and result",
	}, []string{"endpoint", "result"})

	m.unitsFetched = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "units_fetched_total",
		Help:      "Fetch units completed by kind",
	}, []string{"kind"})

	m.recordsFetched = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_fetched_total",
		Help:      "Records decoded from fetch units by kind",
	}, []string{"kind"})

	m.tableRows = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "table_rows",
		Help:      "Rows written per output table in the last run",
	}, []string{"table"})

	m.runDuration = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_duration_seconds",
		Help:      "Wall time of the last run",
	})

	m.runLastSuccess = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_last_success_unixtime",
		Help:      "Unix time of the last successful run",
	})

	m.runs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_total",
		Help:      "Runs by outcome",
	}, []string{"outcome"})
}

// Registry returns the registry the manager's metrics live on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one API round trip. A zero status means the
// request failed before a response arrived.
func (m *Manager) ObserveRequest(endpoint string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveCache records a response cache lookup.
func (m *Manager) ObserveCache(endpoint string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(endpoint, result).Inc()
}

// RecordUnit records a completed fetch unit and how many records it held.
func (m *Manager) RecordUnit(kind string, records int) {
	m.unitsFetched.WithLabelValues(kind).Inc()
	m.recordsFetched.WithLabelValues(kind).Add(float64(records))
}

// RecordTableRows sets the row count of an output table.
func (m *Manager) RecordTableRows(table string, rows int) {
	m.tableRows.WithLabelValues(table).Set(float64(rows))
}

// RecordRun records the outcome and duration of a run.
func (m *Manager) RecordRun(ok bool, elapsed time.Duration, finished time.Time) {
	m.runDuration.Set(elapsed.Seconds())
	if !ok {
		m.runs.WithLabelValues("failure").Inc()
		return
	}
	m.runs.WithLabelValues("success").Inc()
	m.runLastSuccess.Set(float64(finished.Unix()))
}

// Push sends every metric on the registry to the Pushgateway at url,
// replacing the previous push of the same job and grouping.
func (m *Manager) Push(ctx context.Context, url string) error {
	p := push.New(url, Job).Gatherer(m.registry)
	for name, value := range m.grouping {
		p = p.Grouping(name, value)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrPush, err)
	}
	return nil
}
