package metric

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatheredNames(t *testing.T, registry *MetricsRegistry) map[string]bool {
	t.Helper()
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	assert.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.NotNil(t, registry.CoreMetrics())
}

func TestMetricsRegistry_NilCoreMetrics(t *testing.T) {
	var registry *MetricsRegistry
	assert.Nil(t, registry.CoreMetrics())
}

func TestMetricsRegistry_RegisterKinds(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter", Help: "c"})
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "g"})
	counterVec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_counter_vec", Help: "cv"}, []string{"group"})
	gaugeVec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "test_gauge_vec", Help: "gv"}, []string{"group"})
	histVec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_hist_vec", Help: "hv"}, []string{"group"})

	require.NoError(t, registry.RegisterCounter("relay", "test_counter", counter))
	require.NoError(t, registry.RegisterGauge("relay", "test_gauge", gauge))
	require.NoError(t, registry.RegisterCounterVec("relay", "test_counter_vec", counterVec))
	require.NoError(t, registry.RegisterGaugeVec("relay", "test_gauge_vec", gaugeVec))
	require.NoError(t, registry.RegisterHistogramVec("relay", "test_hist_vec", histVec))

	counter.Inc()
	gauge.Set(3)
	counterVec.WithLabelValues("239.0.0.1:5000").Inc()
	gaugeVec.WithLabelValues("239.0.0.1:5000").Set(1)
	histVec.WithLabelValues("239.0.0.1:5000").Observe(0.1)

	names := gatheredNames(t, registry)
	for _, name := range []string{"test_counter", "test_gauge", "test_counter_vec", "test_gauge_vec", "test_hist_vec"} {
		assert.True(t, names[name], "%s should be registered", name)
	}
}

func TestMetricsRegistry_PreventDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	counter1 := prometheus.NewCounter(prometheus.CounterOpts{Name: "duplicate_counter", Help: "dup"})
	counter2 := prometheus.NewCounter(prometheus.CounterOpts{Name: "duplicate_counter", Help: "dup"})

	require.NoError(t, registry.RegisterCounter("service1", "duplicate_counter", counter1))

	err := registry.RegisterCounter("service1", "duplicate_counter", counter2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate metric registration")

	err = registry.RegisterCounter("service2", "duplicate_counter", counter2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prometheus conflict")
}

func TestMetricsRegistry_UnregisterMetric(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "unregister_counter", Help: "u"})
	require.NoError(t, registry.RegisterCounter("relay", "unregister_counter", counter))
	assert.True(t, gatheredNames(t, registry)["unregister_counter"])

	assert.True(t, registry.Unregister("relay", "unregister_counter"))
	assert.False(t, gatheredNames(t, registry)["unregister_counter"])
	assert.False(t, registry.Unregister("relay", "unregister_counter"))
}

func TestMetricsRegistry_ThreadSafety(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	numGoroutines := 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			name := fmt.Sprintf("concurrent_counter_%d", id)
			counter := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: "c"})
			assert.NoError(t, registry.RegisterCounter("relay", name, counter))
		}(i)
	}
	wg.Wait()

	count := 0
	for name := range gatheredNames(t, registry) {
		if strings.HasPrefix(name, "concurrent_counter_") {
			count++
		}
	}
	assert.Equal(t, numGoroutines, count)
}

func TestCoreMetrics_Record(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()

	core.TaskStarted("agent")
	core.TaskStarted("agent")
	core.TaskFinished("agent", "failed")
	core.RecordHealthStatus("239.0.0.1:5000", true)
	core.RecordNATSStatus(true)
	core.RecordNATSRTT(50 * time.Millisecond)
	core.RecordNATSReconnect()
	core.RecordCircuitBreakerState(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(core.TasksActive.WithLabelValues("agent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.TaskResults.WithLabelValues("agent", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.NATSConnected))
	assert.InDelta(t, 0.05, testutil.ToFloat64(core.NATSRTT), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(core.NATSReconnects))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.NATSCircuitBreaker))

	names := gatheredNames(t, registry)
	for _, name := range []string{
		"magicportal_relay_tasks_active",
		"magicportal_relay_task_results_total",
		"magicportal_health_status",
		"magicportal_nats_connected",
		"magicportal_nats_rtt_seconds",
		"magicportal_nats_reconnects_total",
		"magicportal_nats_circuit_breaker",
	} {
		assert.True(t, names[name], "core metric %s should be exported", name)
	}
}
