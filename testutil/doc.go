// Package testutil provides test helpers for the relay and its bus.
//
// # Core Components
//
// MockNATSClient - in-memory bus that satisfies relay.Bus:
//   - Thread-safe for concurrent use
//   - Records every published message per subject, copied on publish
//   - SubscribeStream returns a natsclient.MessageStream fed by Publish
//   - CloseSubject ends streams the way a closed subscription does
//   - SetPublishError and SetSubscribeError inject failures
//
// UDP helpers:
//   - ListenLoopbackUDP binds a receiver on 127.0.0.1
//   - SendDatagram and ReadDatagram move single datagrams
//   - AssertNoDatagram checks that nothing was sent
//
// Payloads:
//   - TestPayloads, SequencedPayloads and PatternPayload
//
// # Usage
//
//	bus := testutil.NewMockNATSClient()
//	receiver := testutil.ListenLoopbackUDP(t)
//
//	agent := relay.NewAgent(relay.AgentDeps{
//		Group: relay.Group{Address: "239.0.0.1:5000"},
//		Bus:   bus,
//		Addressing: relay.Addressing{
//			SendAsUnicast: true,
//			UnicastAddrs:  map[string]string{"239.0.0.1:5000": receiver.LocalAddr().String()},
//		},
//	})
//	go agent.Run(ctx)
//	<-agent.Ready()
//
//	_ = bus.Publish(ctx, "239.0.0.1:5000", []byte("hello"))
//	got := testutil.ReadDatagram(t, receiver, time.Second)
//
// Helpers that wait take an explicit timeout and fail the test with
// t.Fatalf when it expires.
package testutil
