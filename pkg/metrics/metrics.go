// Package metrics exposes the Prometheus counters and histograms the
// conductor, executor, and plays record against. Grounded on
// pkg/metrics/metrics.go: package-level collectors registered in init,
// a Timer helper, and an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PlansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maestro_plans_total",
			Help: "Total number of plays run, by verb and outcome",
		},
		[]string{"verb", "outcome"},
	)

	PlanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "maestro_plan_duration_seconds",
			Help:    "Time taken to run a play to completion, by verb",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"verb"},
	)

	TasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maestro_tasks_total",
			Help: "Total number of per-container tasks run, by verb and outcome",
		},
		[]string{"verb", "outcome"},
	)

	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "maestro_task_duration_seconds",
			Help:    "Time taken by a single per-container task, by verb",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"verb"},
	)

	PullsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maestro_pulls_total",
			Help: "Total number of image pulls, by outcome",
		},
		[]string{"outcome"},
	)

	PullDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "maestro_pull_duration_seconds",
			Help:    "Time taken to pull an image",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	ProbeAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maestro_probe_attempts_total",
			Help: "Total number of readiness probe attempts, by probe type and outcome",
		},
		[]string{"type", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(PlansTotal)
	prometheus.MustRegister(PlanDuration)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(TaskDuration)
	prometheus.MustRegister(PullsTotal)
	prometheus.MustRegister(PullDuration)
	prometheus.MustRegister(ProbeAttemptsTotal)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation's elapsed time for later observation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
