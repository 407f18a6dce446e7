package health

import (
	"fmt"
	"strings"
	"time"
)

// Status values. Relay tasks report degraded while they set up their socket
// or subscription, healthy once relaying, and unhealthy after a failure.
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

func newStatus(component, state, message string) Status {
	return Status{
		Component: component,
		Healthy:   state == StateHealthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy returns a healthy status for component.
func NewHealthy(component, message string) Status {
	return newStatus(component, StateHealthy, message)
}

// NewUnhealthy returns an unhealthy status for component.
func NewUnhealthy(component, message string) Status {
	return newStatus(component, StateUnhealthy, message)
}

// NewDegraded returns a degraded status for component.
func NewDegraded(component, message string) Status {
	return newStatus(component, StateDegraded, message)
}

// Aggregate rolls the per-group and connection statuses up into one.
// Any unhealthy entry makes the whole bridge unhealthy; otherwise any
// degraded entry makes it degraded. The message counts entries per state and
// names the ones that are not healthy, e.g.
// "2 relaying, 1 failed: agent/239.0.0.1:5000".
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "no relay groups running")
	}

	var healthy int
	var degraded, unhealthy []string
	for _, sub := range subStatuses {
		switch {
		case sub.IsUnhealthy():
			unhealthy = append(unhealthy, sub.Component)
		case sub.IsDegraded():
			degraded = append(degraded, sub.Component)
		default:
			healthy++
		}
	}

	parts := []string{fmt.Sprintf("%d relaying", healthy)}
	if len(degraded) > 0 {
		parts = append(parts, fmt.Sprintf("%d starting: %s", len(degraded), strings.Join(degraded, ", ")))
	}
	if len(unhealthy) > 0 {
		parts = append(parts, fmt.Sprintf("%d failed: %s", len(unhealthy), strings.Join(unhealthy, ", ")))
	}
	message := strings.Join(parts, ", ")

	var status Status
	switch {
	case len(unhealthy) > 0:
		status = NewUnhealthy(component, message)
	case len(degraded) > 0:
		status = NewDegraded(component, message)
	default:
		status = NewHealthy(component, message)
	}

	status.SubStatuses = make([]Status, len(subStatuses))
	copy(status.SubStatuses, subStatuses)

	return status
}
