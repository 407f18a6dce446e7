package relay

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/magicportal/errors"
	"github.com/c360/magicportal/metric"
)

// Metrics holds the per-group relay counters, labelled by mode and group.
type Metrics struct {
	datagramsReceived *prometheus.CounterVec
	bytesReceived     *prometheus.CounterVec
	messagesPublished *prometheus.CounterVec
	messagesReceived  *prometheus.CounterVec
	datagramsSent     *prometheus.CounterVec
	bytesSent         *prometheus.CounterVec
	errors            *prometheus.CounterVec
}

// NewMetrics creates and registers the relay metrics. A nil registry
// returns nil, which disables relay metrics.
func NewMetrics(registry metric.MetricsRegistrar) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	labels := []string{"mode", "group"}
	counter := func(name, help string, labelNames []string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "magicportal",
			Subsystem: "relay",
			Name:      name,
			Help:      help,
		}, labelNames)
	}

	m := &Metrics{
		datagramsReceived: counter("datagrams_received_total", "Multicast datagrams read by forwarder tasks", labels),
		bytesReceived:     counter("bytes_received_total", "Payload bytes read by forwarder tasks", labels),
		messagesPublished: counter("messages_published_total", "Messages published to the bus", labels),
		messagesReceived:  counter("messages_received_total", "Messages received from the bus by agent tasks", labels),
		datagramsSent:     counter("datagrams_sent_total", "Datagrams written by agent tasks", labels),
		bytesSent:         counter("bytes_sent_total", "Payload bytes written by agent tasks", labels),
		errors:            counter("errors_total", "Relay task failures by error kind", append(labels, "kind")),
	}

	vecs := map[string]*prometheus.CounterVec{
		"datagrams_received": m.datagramsReceived,
		"bytes_received":     m.bytesReceived,
		"messages_published": m.messagesPublished,
		"messages_received":  m.messagesReceived,
		"datagrams_sent":     m.datagramsSent,
		"bytes_sent":         m.bytesSent,
		"errors":             m.errors,
	}
	for name, vec := range vecs {
		if err := registry.RegisterCounterVec("relay", name, vec); err != nil {
			return nil, errors.Wrap(err, "Metrics", "NewMetrics", "register "+name)
		}
	}

	return m, nil
}

// groupMetrics are the counters of one task. A nil value records nothing.
type groupMetrics struct {
	datagramsReceived prometheus.Counter
	bytesReceived     prometheus.Counter
	messagesPublished prometheus.Counter
	messagesReceived  prometheus.Counter
	datagramsSent     prometheus.Counter
	bytesSent         prometheus.Counter
	errors            *prometheus.CounterVec
}

func (m *Metrics) forGroup(mode string, group Group) *groupMetrics {
	if m == nil {
		return nil
	}
	labels := prometheus.Labels{"mode": mode, "group": group.Address}
	return &groupMetrics{
		datagramsReceived: m.datagramsReceived.With(labels),
		bytesReceived:     m.bytesReceived.With(labels),
		messagesPublished: m.messagesPublished.With(labels),
		messagesReceived:  m.messagesReceived.With(labels),
		datagramsSent:     m.datagramsSent.With(labels),
		bytesSent:         m.bytesSent.With(labels),
		errors:            m.errors.MustCurryWith(labels),
	}
}

func (g *groupMetrics) received(n int) {
	if g == nil {
		return
	}
	g.datagramsReceived.Inc()
	g.bytesReceived.Add(float64(n))
}

func (g *groupMetrics) published() {
	if g == nil {
		return
	}
	g.messagesPublished.Inc()
}

func (g *groupMetrics) consumed() {
	if g == nil {
		return
	}
	g.messagesReceived.Inc()
}

func (g *groupMetrics) sent(n int) {
	if g == nil {
		return
	}
	g.datagramsSent.Inc()
	g.bytesSent.Add(float64(n))
}

func (g *groupMetrics) failed(err error) {
	if g == nil || err == nil {
		return
	}
	g.errors.WithLabelValues(errors.KindName(err)).Inc()
}
