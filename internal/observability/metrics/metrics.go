// Package metrics defines the Prometheus metrics of the alerting service.
//
// Metric naming follows Prometheus conventions:
//   - fichai_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/edupresencia/fichai/internal/alerting"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fichai"

// Delivery channels.
const (
	ChannelInternal = "internal"
	ChannelEmail    = "email"
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	// OutcomesTotal counts rule evaluations by decision, reason and rule type.
	OutcomesTotal *prometheus.CounterVec
	// DeliveriesTotal counts individual deliveries by channel and status.
	DeliveriesTotal *prometheus.CounterVec
	// ScheduledTotal counts deliveries handed to the scheduler.
	ScheduledTotal prometheus.Counter
	// TriggerMessagesTotal counts inbound attendance events by source and status.
	TriggerMessagesTotal *prometheus.CounterVec
	// HTTPRequestsTotal counts API requests by method, route and status.
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestDuration is a histogram of API latency by method and route.
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the metrics and registers them together with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_outcomes_total",
			Help:      "Total alert rule evaluations by decision, reason and rule type.",
		}, []string{"decision", "reason", "type"}),
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_deliveries_total",
			Help:      "Total alert deliveries by channel and status.",
		}, []string{"channel", "status"}),
		ScheduledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_scheduled_total",
			Help:      "Total alert deliveries deferred to the scheduler.",
		}),
		TriggerMessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_messages_total",
			Help:      "Total attendance events received by source and status.",
		}, []string{"source", "status"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.OutcomesTotal,
		m.DeliveriesTotal,
		m.ScheduledTotal,
		m.TriggerMessagesTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterEventBus exposes the queue depth and drop count of an event bus.
func (m *Metrics) RegisterEventBus(bus *alerting.AlertEventBus) {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_events_dropped_total",
			Help:      "Total attendance events dropped because the event queue was full.",
		}, func() float64 { return float64(bus.Dropped()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_events_pending",
			Help:      "Attendance events waiting in the event queue.",
		}, func() float64 { return float64(bus.Pending()) }),
	)
}

// RegisterEngine exposes the number of cached rules and pending scheduled
// deliveries of an engine.
func (m *Metrics) RegisterEngine(engine *alerting.Engine) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_rules_loaded",
			Help:      "Enabled alert rules held by the engine.",
		}, func() float64 { return float64(engine.RuleCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_jobs_pending",
			Help:      "Delayed or repeating deliveries waiting in the scheduler.",
		}, func() float64 {
			if s := engine.Scheduler(); s != nil {
				return float64(len(s.Pending()))
			}
			return 0
		}),
	)
}

// ObserveOutcome records an engine outcome. It is an alerting.OutcomeFunc.
func (m *Metrics) ObserveOutcome(o alerting.NotificationOutcome) {
	m.OutcomesTotal.WithLabelValues(o.Decision, o.Reason, o.Type).Inc()
	if o.Scheduled {
		m.ScheduledTotal.Inc()
	}
	r := o.Report
	if r == nil {
		return
	}
	m.add(ChannelInternal, "sent", r.InternalSent)
	m.add(ChannelInternal, "failed", r.InternalFailed)
	m.add(ChannelEmail, "sent", r.EmailSent)
	m.add(ChannelEmail, "failed", r.EmailFailed)
	m.add(ChannelEmail, "skipped", len(r.EmailSkipped))
}

func (m *Metrics) add(channel, status string, n int) {
	if n > 0 {
		m.DeliveriesTotal.WithLabelValues(channel, status).Add(float64(n))
	}
}

// ObserveTrigger records an inbound attendance event.
func (m *Metrics) ObserveTrigger(source, status string) {
	m.TriggerMessagesTotal.WithLabelValues(source, status).Inc()
}

// ObserveHTTP records a completed API request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
