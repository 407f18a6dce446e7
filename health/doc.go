// Package health tracks the liveness of the bus connection and of each relay
// task, and serves the aggregate over HTTP.
//
// # Health States
//
//   - Healthy: the task is relaying
//   - Degraded: the task is still setting up its socket or subscription
//   - Unhealthy: the task stopped with an error, or the bus is disconnected
//
// # Basic Usage
//
//	monitor := health.NewMonitor()
//	monitor.UpdateDegraded("239.0.0.1:5000", "starting")
//	monitor.UpdateHealthy("239.0.0.1:5000", "relaying")
//
//	http.Handle("/health", health.Handler(monitor, "magicportal"))
//
// Update and Remove accept a nil *Monitor so callers can run without one.
//
// Error messages given to FromError are sanitized; URLs, paths, addresses and
// credentials are masked before they reach the endpoint.
package health
