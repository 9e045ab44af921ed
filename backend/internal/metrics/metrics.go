// Package metrics exposes the bridge's prometheus instrumentation. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "room_bridge"

// Metrics holds the collectors updated by ingress, hub, command gateway and broker session.
type Metrics struct {
	registry *prometheus.Registry

	messagesReceived *prometheus.CounterVec
	messagesRejected *prometheus.CounterVec
	storeErrors      prometheus.Counter

	subscribers      prometheus.Gauge
	queueDepth       prometheus.Gauge
	eventsDelivered  prometheus.Counter
	eventsOverflowed prometheus.Counter
	subscribersPrune prometheus.Counter

	commandsSent   *prometheus.CounterVec
	commandsFailed *prometheus.CounterVec

	brokerConnected prometheus.Gauge
}

// New creates the collectors on a fresh registry that also carries the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingress",
			Name:      "messages_total",
			Help:      "Broker messages normalized and accepted, by topic class",
		}, []string{"class"}),
		messagesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingress",
			Name:      "rejected_total",
			Help:      "Broker messages dropped by the normalizer, by topic class and reason",
		}, []string{"class", "reason"}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingress",
			Name:      "store_errors_total",
			Help:      "State store writes that failed",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Live subscribers currently registered",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "queue_depth",
			Help:      "Events waiting to be drained",
		}),
		eventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "deliveries_total",
			Help:      "Successful event pushes to subscribers",
		}),
		eventsOverflowed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "overflow_drops_total",
			Help:      "Oldest queued events dropped because the queue limit was reached",
		}),
		subscribersPrune: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "pruned_subscribers_total",
			Help:      "Subscribers removed after a failed push",
		}),
		commandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "sent_total",
			Help:      "Commands published to the device fleet, by device",
		}, []string{"device"}),
		commandsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "failed_total",
			Help:      "Commands not published, by reason",
		}, []string{"reason"}),
		brokerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "connected",
			Help:      "1 while the broker session is connected",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messagesReceived,
		m.messagesRejected,
		m.storeErrors,
		m.subscribers,
		m.queueDepth,
		m.eventsDelivered,
		m.eventsOverflowed,
		m.subscribersPrune,
		m.commandsSent,
		m.commandsFailed,
		m.brokerConnected,
	)

	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

func (m *Metrics) MessageReceived(class string) {
	if m == nil {
		return
	}

	m.messagesReceived.WithLabelValues(class).Inc()
}

func (m *Metrics) MessageRejected(class, reason string) {
	if m == nil {
		return
	}

	m.messagesRejected.WithLabelValues(class, reason).Inc()
}

func (m *Metrics) StoreError() {
	if m == nil {
		return
	}

	m.storeErrors.Inc()
}

func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}

	m.subscribers.Set(float64(n))
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}

	m.queueDepth.Set(float64(n))
}

func (m *Metrics) Delivered(n int) {
	if m == nil {
		return
	}

	m.eventsDelivered.Add(float64(n))
}

func (m *Metrics) Overflowed() {
	if m == nil {
		return
	}

	m.eventsOverflowed.Inc()
}

func (m *Metrics) SubscriberPruned() {
	if m == nil {
		return
	}

	m.subscribersPrune.Inc()
}

func (m *Metrics) CommandSent(device string) {
	if m == nil {
		return
	}

	m.commandsSent.WithLabelValues(device).Inc()
}

func (m *Metrics) CommandFailed(reason string) {
	if m == nil {
		return
	}

	m.commandsFailed.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetBrokerConnected(connected bool) {
	if m == nil {
		return
	}

	v := 0.0
	if connected {
		v = 1
	}

	m.brokerConnected.Set(v)
}
