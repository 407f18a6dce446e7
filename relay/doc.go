// Package relay moves datagrams between IP multicast groups and the message
// bus, one task per group.
//
// # Modes
//
// A Forwarder binds to its group address, joins the group on the configured
// interface and publishes every datagram to the bus subject equal to the
// group address ("239.0.0.1:5000"). Datagrams longer than the configured
// packet size are truncated by the socket.
//
// An Agent subscribes to that subject and writes each payload to a connected
// UDP socket. The destination is resolved once at start by
// ResolveDestination: the group itself, or the unicast peer configured for
// the group when send_as_unicast is set. A missing peer fails only that task.
//
// # Supervision
//
// Supervisor.Run starts one goroutine per task and waits for all of them.
// Every task ends with a Result tagged cancelled, completed or failed. Under
// ContinueOnFailure a failure is logged and the other groups keep running;
// under AbortOnFailure the first failure cancels the rest. A panic in a task
// is recovered and always cancels the others.
//
//	tasks, err := relay.NewTasks(cfg, relay.TaskDeps{Bus: client, Logger: logger})
//	if err != nil {
//		return err
//	}
//	report, err := relay.NewSupervisor(relay.SupervisorDeps{Logger: logger}).Run(ctx, tasks)
//
// # Cancellation
//
// Both directions stop on ctx cancellation. The forwarder unblocks its read
// by expiring the socket deadline; the agent stops waiting for the next
// message. Neither starts another receive after cancellation and neither
// reports cancellation as an error.
//
// Within a group messages keep their order. Across groups there is no
// ordering.
package relay
