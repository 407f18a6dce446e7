package health

import (
	"encoding/json"
	"net/http"
)

// Handler serves the aggregated status of monitor as JSON. The response code
// is 503 when any component is unhealthy and 200 otherwise, so degraded
// (starting) tasks do not fail readiness probes.
func Handler(monitor *Monitor, systemName string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status := monitor.AggregateHealth(systemName)

		w.Header().Set("Content-Type", "application/json")
		if status.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(status)
	}
}
