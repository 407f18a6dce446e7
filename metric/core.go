package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the process-level bridge metrics. Per-group relay
// metrics are registered separately by the relay package.
type Metrics struct {
	// Relay task metrics
	TasksActive  *prometheus.GaugeVec
	TaskResults  *prometheus.CounterVec
	HealthStatus *prometheus.GaugeVec

	// NATS metrics
	NATSConnected      prometheus.Gauge
	NATSRTT            prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all core metrics
func NewMetrics() *Metrics {
	return &Metrics{
		TasksActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "magicportal",
				Subsystem: "relay",
				Name:      "tasks_active",
				Help:      "Number of relay tasks currently running",
			},
			[]string{"mode"},
		),

		TaskResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "magicportal",
				Subsystem: "relay",
				Name:      "task_results_total",
				Help:      "Relay task exits by outcome (cancelled, completed, failed)",
			},
			[]string{"mode", "outcome"},
		),

		HealthStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "magicportal",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health status per component (0=unhealthy, 1=healthy)",
			},
			[]string{"component"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "magicportal",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "magicportal",
				Subsystem: "nats",
				Name:      "rtt_seconds",
				Help:      "NATS round-trip time in seconds",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "magicportal",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),

		NATSCircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "magicportal",
				Subsystem: "nats",
				Name:      "circuit_breaker",
				Help:      "NATS circuit breaker status (0=closed, 1=open)",
			},
		),
	}
}

// TaskStarted increments the running task gauge for mode
func (c *Metrics) TaskStarted(mode string) {
	c.TasksActive.WithLabelValues(mode).Inc()
}

// TaskFinished decrements the running task gauge and counts the outcome
func (c *Metrics) TaskFinished(mode, outcome string) {
	c.TasksActive.WithLabelValues(mode).Dec()
	c.TaskResults.WithLabelValues(mode, outcome).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(component string, healthy bool) {
	c.HealthStatus.WithLabelValues(component).Set(boolToFloat(healthy))
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	c.NATSConnected.Set(boolToFloat(connected))
}

// RecordNATSRTT updates NATS round-trip time
func (c *Metrics) RecordNATSRTT(rtt time.Duration) {
	c.NATSRTT.Set(rtt.Seconds())
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates circuit breaker status
func (c *Metrics) RecordCircuitBreakerState(open bool) {
	c.NATSCircuitBreaker.Set(boolToFloat(open))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
