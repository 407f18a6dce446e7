// Package magicportal bridges IP multicast groups and NATS.
//
// A forwarder joins each configured multicast group on a named interface and
// publishes every datagram it receives to the NATS subject equal to the group
// address, for example "239.0.0.1:5000". An agent subscribes to the same
// subjects and re-emits each message over UDP, either back to the multicast
// group or to a per-group unicast address.
//
// # Layout
//
//   - cmd/magicportal: the command, flags and logging setup
//   - config: file, layer and environment configuration loading
//   - relay: per-group relay tasks, addressing and the group supervisor
//   - natsclient: NATS connection management with a circuit breaker
//   - pkg/netif: interface and IPv4 address lookup
//   - health, metric: component health and the Prometheus endpoint
//   - errors: classified errors and relay failure kinds
//   - testutil: in-memory bus and UDP helpers for tests
//
// Each group runs as an independent task. One group failing does not stop
// the others unless the abort failure policy is configured, and cancelling
// the process context stops every task in both directions.
package magicportal
