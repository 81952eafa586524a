package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ordernotify/internal/types"
)

// PrometheusNotificationMetrics implements NotificationMetrics with
// Prometheus collectors, for the long-running listener's /metrics endpoint.
type PrometheusNotificationMetrics struct {
	deliveries  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	unreachable prometheus.Counter
	cycles      *prometheus.CounterVec
	cycleTime   *prometheus.HistogramVec
	eventLag    *prometheus.HistogramVec
}

var _ NotificationMetrics = (*PrometheusNotificationMetrics)(nil)

// NewPrometheusNotificationMetrics creates the collectors and registers them
// with reg.
func NewPrometheusNotificationMetrics(reg prometheus.Registerer) *PrometheusNotificationMetrics {
	const ns = "ordernotify"
	m := &PrometheusNotificationMetrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "delivery_attempts_total",
			Help:      "Push send attempts by target kind, recipient class and result.",
		}, []string{"target", "class", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "delivery_latency_seconds",
			Help:      "Push send latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target"}),
		unreachable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "recipients_unreachable_total",
			Help:      "Farmers skipped because they have no registered device.",
		}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cycles_total",
			Help:      "Notification cycles by result.",
		}, []string{"result"}),
		cycleTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "cycle_duration_seconds",
			Help:      "Notification cycle duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		eventLag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "event_lag_seconds",
			Help:      "Time from order creation to event processing.",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"trigger"}),
	}

	reg.MustRegister(m.deliveries, m.latency, m.unreachable, m.cycles, m.cycleTime, m.eventLag)
	return m
}

func (m *PrometheusNotificationMetrics) RecordDelivery(_ context.Context, target types.TargetKind, class types.RecipientClass, result MetricResult) {
	m.deliveries.WithLabelValues(string(target), string(class), string(result)).Inc()
}

func (m *PrometheusNotificationMetrics) RecordLatency(_ context.Context, target types.TargetKind, d time.Duration) {
	m.latency.WithLabelValues(string(target)).Observe(d.Seconds())
}

func (m *PrometheusNotificationMetrics) RecordUnreachable(_ context.Context, count int) {
	m.unreachable.Add(float64(count))
}

func (m *PrometheusNotificationMetrics) RecordCycle(_ context.Context, result CycleResult, d time.Duration) {
	m.cycles.WithLabelValues(string(result)).Inc()
	m.cycleTime.WithLabelValues(string(result)).Observe(d.Seconds())
}

func (m *PrometheusNotificationMetrics) RecordEventLag(_ context.Context, trigger string, lag time.Duration) {
	m.eventLag.WithLabelValues(trigger).Observe(lag.Seconds())
}
