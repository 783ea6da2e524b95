package jobs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report engine activity.
type Metrics struct {
	jobsFinished     *prometheus.CounterVec
	guidelineResults *prometheus.CounterVec
	attemptDuration  *prometheus.HistogramVec
	retries          prometheus.Counter
	jobsActive       prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. The collectors are created only once so
// building several runners cannot panic on duplicate registration.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Tests pass a fresh registry; a registration error panics, mirroring
// promauto semantics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	jobsFinished := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardrail",
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Jobs that reached a terminal status.",
		},
		[]string{"status"},
	)
	guidelineResults := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardrail",
			Subsystem: "jobs",
			Name:      "guideline_results_total",
			Help:      "Guideline evaluations by final compliance outcome.",
		},
		[]string{"compliance"},
	)
	attemptDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "guardrail",
			Subsystem: "jobs",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of individual evaluator calls.",
			Buckets:   []float64{1, 5, 15, 60, 180, 600, 1200},
		},
		[]string{"outcome"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "guardrail",
			Subsystem: "jobs",
			Name:      "retries_total",
			Help:      "Evaluator attempts that failed transiently and were retried.",
		},
	)
	jobsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "guardrail",
			Subsystem: "jobs",
			Name:      "active",
			Help:      "Jobs currently being processed.",
		},
	)

	collectors := []prometheus.Collector{jobsFinished, guidelineResults, attemptDuration, retries, jobsActive}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch target := collector.(type) {
				case *prometheus.CounterVec:
					switch target { //nolint:exhaustive
					case jobsFinished:
						jobsFinished = already.ExistingCollector.(*prometheus.CounterVec)
					case guidelineResults:
						guidelineResults = already.ExistingCollector.(*prometheus.CounterVec)
					}
				case *prometheus.HistogramVec:
					attemptDuration = already.ExistingCollector.(*prometheus.HistogramVec)
				case prometheus.Gauge:
					jobsActive = already.ExistingCollector.(prometheus.Gauge)
				case prometheus.Counter:
					retries = already.ExistingCollector.(prometheus.Counter)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		jobsFinished:     jobsFinished,
		guidelineResults: guidelineResults,
		attemptDuration:  attemptDuration,
		retries:          retries,
		jobsActive:       jobsActive,
	}
}

// JobFinished records a job reaching a terminal status.
func (m *Metrics) JobFinished(status Status) {
	if m == nil || m.jobsFinished == nil {
		return
	}
	m.jobsFinished.WithLabelValues(string(status)).Inc()
}

// GuidelineResult records one guideline's final compliance outcome.
func (m *Metrics) GuidelineResult(compliance string) {
	if m == nil || m.guidelineResults == nil {
		return
	}
	m.guidelineResults.WithLabelValues(compliance).Inc()
}

// ObserveAttempt records the duration of one evaluator call.
func (m *Metrics) ObserveAttempt(outcome AttemptOutcome, elapsed time.Duration) {
	if m == nil || m.attemptDuration == nil {
		return
	}
	m.attemptDuration.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
}

// IncRetry counts a transient failure that triggered another attempt.
func (m *Metrics) IncRetry() {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Inc()
}

// IncActiveJobs marks a job as running.
func (m *Metrics) IncActiveJobs() {
	if m == nil || m.jobsActive == nil {
		return
	}
	m.jobsActive.Inc()
}

// DecActiveJobs marks a job as no longer running.
func (m *Metrics) DecActiveJobs() {
	if m == nil || m.jobsActive == nil {
		return
	}
	m.jobsActive.Dec()
}
