package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	CycleCount      prometheus.Counter
	CycleFailures   prometheus.Counter
	MessagesFetched prometheus.Counter
	MessagesDeduped prometheus.Counter
	Reassignments   prometheus.Counter
	Skips           *prometheus.CounterVec
	Failures        prometheus.Counter
	PendingRetries  prometheus.Gauge
	CycleDuration   prometheus.Histogram
	LastHealthy     prometheus.Gauge
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		CycleCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailbox_monitor_cycle_count",
			Help: "Total number of mailbox scan cycles",
		}),
		CycleFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailbox_monitor_cycle_failures",
			Help: "Total number of cycles aborted by an error",
		}),
		MessagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailbox_monitor_messages_fetched",
			Help: "Total number of unread messages returned by the mailbox",
		}),
		MessagesDeduped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailbox_monitor_messages_deduped",
			Help: "Total number of messages skipped because a terminal record existed",
		}),
		Reassignments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailbox_monitor_reassignments",
			Help: "Total number of issues reassigned",
		}),
		Skips: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mailbox_monitor_skips",
			Help: "Total number of messages skipped, by reason",
		}, []string{"reason"}),
		Failures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailbox_monitor_failures",
			Help: "Total number of failed processing attempts",
		}),
		PendingRetries: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mailbox_monitor_pending_retries",
			Help: "Failed messages that still have attempts left",
		}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailbox_monitor_cycle_duration_seconds",
			Help:    "Time spent per mailbox scan cycle",
			Buckets: prometheus.DefBuckets,
		}),
		LastHealthy: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mailbox_monitor_healthy",
			Help: "1 when the last health check passed for all dependencies",
		}),
	}
}
