// Package natsclient wraps the NATS Go client with a circuit breaker,
// connection state tracking and pull-style subscriptions.
//
// # Core Features
//
// Circuit Breaker: after a threshold of consecutive connection failures
// (default 5) the circuit opens and Connect fails fast. The breaker moves back
// to disconnected after the current backoff, which doubles on every round up
// to the configured maximum.
//
// Connection Lifecycle: Disconnected → Connecting → Connected → Reconnecting →
// Connected. Status changes are mirrored to the core metrics when a registry
// is configured with WithMetrics, and reported to the health callback.
//
// Message Streams: SubscribeStream returns a MessageStream whose Next blocks
// for one message at a time. Next honours context cancellation and reports
// ErrStreamClosed once the subscription or connection is gone.
//
// # Basic Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//		natsclient.WithCredentials("bridge", "secret"),
//		natsclient.WithLogger(natsclient.NewSlogLogger(logger)),
//	)
//	if err != nil {
//		return err
//	}
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close(context.Background())
//
//	if err := client.Publish(ctx, "239.0.0.1:5000", payload); err != nil {
//		return err
//	}
//
//	stream, err := client.SubscribeStream(ctx, "239.0.0.1:5000")
//	if err != nil {
//		return err
//	}
//	for {
//		data, err := stream.Next(ctx)
//		if err != nil {
//			break
//		}
//		handle(data)
//	}
//
// Several servers may be given as one comma separated URL string.
//
// # Error Handling
//
// Connect wraps failures with errors.ErrConnection so callers can classify
// them with errors.KindOf. Publish and SubscribeStream return ErrNotConnected
// when there is no live connection.
//
// # Testing
//
// NewTestClient starts a NATS server in a container with testcontainers-go
// and returns a connected client. Tests that use it carry the integration
// build tag:
//
//	go test -tags=integration ./natsclient/...
package natsclient
