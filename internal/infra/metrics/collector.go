package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"docbox_notifier/internal/app"
)

const metricsNamespace = "docbox_notifier"

// Collector is a prometheus.Collector for the scheduler and its evaluators.
type Collector struct {
	boxesExpired *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	tickDuration *prometheus.HistogramVec
	ticks        *prometheus.CounterVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		boxesExpired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "boxes_expired_total",
				Help:      "The number of boxes moved to CLOSED_EXPIRED.",
			}, nil,
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "deliveries_total",
				Help:      "Dispatched deliveries by kind and outcome.",
			}, []string{"kind", "outcome"},
		),
		tickDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "tick_duration_seconds",
				Help:      "The time taken by one scheduled job run.",
				Buckets:   []float64{0.1, 0.5, 1, 5, 30, 60, 300, 900, 1800},
			}, []string{"job"},
		),
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "ticks_total",
				Help:      "Scheduled job runs by result (ok, failed, skipped).",
			}, []string{"job", "result"},
		),
	}
}

// BoxesExpired is part of the app.Metrics interface.
func (c *Collector) BoxesExpired(n int) {
	c.boxesExpired.WithLabelValues().Add(float64(n))
}

// Dispatched is part of the app.Metrics interface.
func (c *Collector) Dispatched(kind app.DeliveryKind, status app.OutcomeStatus) {
	c.deliveries.WithLabelValues(string(kind), string(status)).Inc()
}

// TickFinished records one job run.
func (c *Collector) TickFinished(job string, took time.Duration, err error) {
	c.tickDuration.WithLabelValues(job).Observe(took.Seconds())
	result := "ok"
	if err != nil {
		result = "failed"
	}
	c.ticks.WithLabelValues(job, result).Inc()
}

// TickSkipped records a run that did not take the leader lock.
func (c *Collector) TickSkipped(job string) {
	c.ticks.WithLabelValues(job, "skipped").Inc()
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.boxesExpired.Describe(ch)
	c.deliveries.Describe(ch)
	c.tickDuration.Describe(ch)
	c.ticks.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.boxesExpired.Collect(ch)
	c.deliveries.Collect(ch)
	c.tickDuration.Collect(ch)
	c.ticks.Collect(ch)
}
