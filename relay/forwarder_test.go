package relay

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/magicportal/errors"
	"github.com/c360/magicportal/metric"
	"github.com/c360/magicportal/pkg/netif"
	tu "github.com/c360/magicportal/testutil"
)

// startForwarder runs a forwarder whose socket is a loopback listener
// instead of a group membership. It returns the address to send to.
func startForwarder(t *testing.T, deps ForwarderDeps) (context.CancelFunc, <-chan error, string) {
	t.Helper()

	conn := tu.ListenLoopbackUDP(t)
	if deps.Group.Address == "" {
		deps.Group = Group{Address: testGroup, Interface: "lo"}
	}
	fwd := NewForwarder(deps)
	fwd.listen = func() (net.PacketConn, error) { return conn, nil }

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan error, 1)
	go func() { done <- fwd.Run(ctx) }()

	select {
	case <-fwd.Ready():
	case err := <-done:
		t.Fatalf("forwarder exited during setup: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("forwarder did not become ready")
	}
	return cancel, done, conn.LocalAddr().String()
}

func TestForwarder_PublishesToGroupSubject(t *testing.T) {
	bus := tu.NewMockNATSClient()
	cancel, done, addr := startForwarder(t, ForwarderDeps{Bus: bus})

	tu.SendDatagram(t, addr, []byte("hello"))

	got := tu.WaitForMessage(t, bus, testGroup, 2*time.Second)
	assert.Equal(t, []byte("hello"), got)

	cancel()
	assert.NoError(t, waitDone(t, done))
}

func TestForwarder_TruncatesToMaxPacketSize(t *testing.T) {
	bus := tu.NewMockNATSClient()
	cancel, done, addr := startForwarder(t, ForwarderDeps{Bus: bus, MaxPacketSize: 16})

	payload := tu.PatternPayload(40)
	tu.SendDatagram(t, addr, payload)
	tu.SendDatagram(t, addr, []byte("short"))

	tu.WaitForMessageCount(t, bus, testGroup, 2, 2*time.Second)
	msgs := bus.GetMessages(testGroup)
	assert.Equal(t, payload[:16], msgs[0])
	assert.Equal(t, []byte("short"), msgs[1])

	cancel()
	assert.NoError(t, waitDone(t, done))
}

func TestForwarder_PreservesOrder(t *testing.T) {
	bus := tu.NewMockNATSClient()
	cancel, done, addr := startForwarder(t, ForwarderDeps{Bus: bus})

	payloads := tu.SequencedPayloads(50)
	for _, p := range payloads {
		tu.SendDatagram(t, addr, p)
	}

	tu.WaitForMessageCount(t, bus, testGroup, len(payloads), 2*time.Second)
	tu.AssertPayloads(t, payloads, bus.GetMessages(testGroup))

	cancel()
	assert.NoError(t, waitDone(t, done))
}

func TestForwarder_CancelUnblocksRead(t *testing.T) {
	bus := tu.NewMockNATSClient()
	cancel, done, _ := startForwarder(t, ForwarderDeps{Bus: bus})

	cancel()
	cancel()
	assert.NoError(t, waitDone(t, done))
	tu.AssertNoMessages(t, bus, testGroup)
}

func TestForwarder_PublishError(t *testing.T) {
	bus := tu.NewMockNATSClient()
	bus.SetPublishError(fmt.Errorf("nats: connection closed"))

	registry := metric.NewMetricsRegistry()
	metrics, err := NewMetrics(registry)
	require.NoError(t, err)

	_, done, addr := startForwarder(t, ForwarderDeps{Bus: bus, Metrics: metrics})
	tu.SendDatagram(t, addr, []byte("x"))

	err = waitDone(t, done)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPublish))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.errors.WithLabelValues("forwarder", testGroup, "publish")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.datagramsReceived.WithLabelValues("forwarder", testGroup)))
}

func TestForwarder_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	metrics, err := NewMetrics(registry)
	require.NoError(t, err)

	bus := tu.NewMockNATSClient()
	cancel, done, addr := startForwarder(t, ForwarderDeps{Bus: bus, Metrics: metrics})

	tu.SendDatagram(t, addr, []byte("12345"))
	tu.WaitForMessage(t, bus, testGroup, 2*time.Second)

	cancel()
	require.NoError(t, waitDone(t, done))

	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.bytesReceived.WithLabelValues("forwarder", testGroup)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.messagesPublished.WithLabelValues("forwarder", testGroup)))
}

type fakeResolver struct {
	iface *net.Interface
	ip    net.IP
	err   error
}

func (r fakeResolver) LookupIPv4(string) (*net.Interface, net.IP, error) {
	return r.iface, r.ip, r.err
}

func TestForwarder_SetupErrors(t *testing.T) {
	notFound := errors.WrapKind(errors.ErrInterfaceNotFound, nil, "Resolver", "LookupIPv4", "no such interface")

	tests := []struct {
		name     string
		group    Group
		resolver interfaceResolver
		wantErr  error
	}{
		{"malformed group", Group{Address: "239.0.0.1", Interface: "eth0"}, fakeResolver{}, errors.ErrAddressParse},
		{"host name group", Group{Address: "mcast.local:5000", Interface: "eth0"}, fakeResolver{}, errors.ErrAddressParse},
		{"ipv6 group", Group{Address: "[ff02::1]:5000", Interface: "eth0"}, fakeResolver{}, errors.ErrAddressParse},
		{"unknown interface", Group{Address: testGroup, Interface: "nope0"}, fakeResolver{err: notFound}, errors.ErrInterfaceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fwd := NewForwarder(ForwarderDeps{Group: tt.group, Bus: tu.NewMockNATSClient()})
			fwd.resolver = tt.resolver

			err := fwd.Run(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestForwarder_JoinNonMulticastAddress(t *testing.T) {
	name := netif.Loopback()
	if name == "" {
		t.Skip("no IPv4 loopback interface")
	}

	fwd := NewForwarder(ForwarderDeps{
		Group: Group{Address: "127.0.0.1:0", Interface: name},
		Bus:   tu.NewMockNATSClient(),
	})

	err := fwd.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMulticastJoin), "got %v", err)
}

func TestForwarder_NilBus(t *testing.T) {
	err := NewForwarder(ForwarderDeps{Group: Group{Address: testGroup}}).Run(context.Background())
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestForwarder_DefaultMaxPacketSize(t *testing.T) {
	fwd := NewForwarder(ForwarderDeps{Group: Group{Address: testGroup}})
	assert.Equal(t, 1024, fwd.maxPacketSize)
	assert.Equal(t, "forwarder", fwd.Mode())
}
