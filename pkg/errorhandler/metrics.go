package errorhandler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records error handler activity.
type Metrics interface {
	IncErrors(errType ErrorType, severity Severity)
	ObserveRetry(delay time.Duration)
	IncNotificationFailures(channel string)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncErrors(ErrorType, Severity)  {}
func (Noop) ObserveRetry(time.Duration)     {}
func (Noop) IncNotificationFailures(string) {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	errors               *prometheus.CounterVec
	retries              prometheus.Counter
	retryDelay           prometheus.Histogram
	notificationFailures *prometheus.CounterVec
}

// NewProm creates the collectors and registers them with reg.
// A nil reg uses the default registerer.
func NewProm(namespace string, reg prometheus.Registerer) *Prom {
	p := &Prom{
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_errors_total",
			Help:      "Node errors by type and severity",
		}, []string{"type", "severity"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_retries_scheduled_total",
			Help:      "Retries advised by the error handler",
		}),
		retryDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_retry_delay_seconds",
			Help:      "Advised delay before a retry",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32, 60},
		}),
		notificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "error_notification_failures_total",
			Help:      "Failed error notifications by channel",
		}, []string{"channel"}),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	reg.MustRegister(p.errors, p.retries, p.retryDelay, p.notificationFailures)

	return p
}

func (p *Prom) IncErrors(errType ErrorType, severity Severity) {
	p.errors.WithLabelValues(string(errType), string(severity)).Inc()
}

func (p *Prom) ObserveRetry(delay time.Duration) {
	p.retries.Inc()
	p.retryDelay.Observe(delay.Seconds())
}

func (p *Prom) IncNotificationFailures(channel string) {
	p.notificationFailures.WithLabelValues(channel).Inc()
}
