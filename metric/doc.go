// Package metric provides Prometheus-based metrics collection and the HTTP
// server that exposes them.
//
// # Architecture
//
//  1. Core Metrics: bridge-level metrics registered automatically (Metrics type):
//     running relay tasks, task outcomes, per-component health and NATS
//     connection state.
//  2. Registrar: packages register their own collectors under a
//     "service.metric" key (MetricsRegistrar interface). The relay package
//     uses it for per-group datagram and message counters.
//  3. HTTP Server: /metrics in Prometheus format plus /health backed by a
//     health.Monitor (Server type).
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry, monitor)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        logger.Error("metrics server failed", "error", err)
//	    }
//	}()
//	defer server.Stop(ctx)
//
// # Disabled Metrics
//
// Packages accept a *MetricsRegistry in their dependency structs. A nil
// registry means metrics are disabled and every recording call is skipped.
package metric
