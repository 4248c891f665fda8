// Package metrics exports Prometheus metrics for ldap clients, driven by
// their events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/isometry/ldapasync/ldap"
)

// OutcomeSuccess labels requests that completed without error. Failed
// requests are labelled with their ldap.ErrorCategory.
const OutcomeSuccess = "success"

// EventSource is anything that delivers client events, such as *ldap.Client.
type EventSource interface {
	SubscribeAll(h ldap.Handler) (unsubscribe func())
}

// Collector holds the Prometheus metrics for one or more clients.
type Collector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	inFlight         prometheus.Gauge
	connectionEvents *prometheus.CounterVec
}

// NewCollector creates the client metrics under namespace.
func NewCollector(namespace string) *Collector {
	return &Collector{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of LDAP operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "LDAP operation latency in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "in_flight",
				Help:      "Number of LDAP operations awaiting a response",
			},
		),

		connectionEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connection_events_total",
				Help:      "Total number of connection lifecycle events",
			},
			[]string{"event"},
		),
	}
}

// Register registers all metrics with reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, collector := range []prometheus.Collector{
		c.requestsTotal,
		c.requestDuration,
		c.inFlight,
		c.connectionEvents,
	} {
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// Attach records the events of source until the returned function is called.
func (c *Collector) Attach(source EventSource) (detach func()) {
	return source.SubscribeAll(c.Observe)
}

// Observe records a single event.
func (c *Collector) Observe(ev ldap.Event) {
	switch ev.Type {
	case ldap.EventRequest:
		c.inFlight.Inc()

	case ldap.EventResult:
		c.inFlight.Dec()
		outcome := OutcomeSuccess
		if ev.Err != nil {
			outcome = string(ldap.CategoryOf(ev.Err))
		}
		c.requestsTotal.WithLabelValues(ev.Operation, outcome).Inc()
		c.requestDuration.WithLabelValues(ev.Operation).Observe(ev.Duration.Seconds())

	case ldap.EventConnect, ldap.EventConnectError, ldap.EventClose, ldap.EventDestroy:
		c.connectionEvents.WithLabelValues(string(ev.Type)).Inc()
	}
}
