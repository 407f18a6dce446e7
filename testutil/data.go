package testutil

import (
	"bytes"
	"fmt"
	"net"
	"testing"
	"time"
)

// TestPayloads are small datagram payloads in a fixed order.
var TestPayloads = [][]byte{
	[]byte("hello"),
	[]byte("multicast"),
	{0x00, 0x01, 0x02, 0xff},
	[]byte(`{"seq": 4}`),
}

// SequencedPayloads returns n payloads "msg-0000" .. "msg-nnnn" for
// ordering checks.
func SequencedPayloads(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte(fmt.Sprintf("msg-%04d", i))
	}
	return out
}

// PatternPayload returns size bytes of a repeating 0..255 pattern.
func PatternPayload(size int) []byte {
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(i % 256)
	}
	return out
}

// ListenLoopbackUDP binds a UDP socket on 127.0.0.1 with an ephemeral port.
// It is closed with t.Cleanup.
func ListenLoopbackUDP(t *testing.T) *net.UDPConn {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to bind loopback UDP socket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendDatagram writes payload to addr from a fresh socket.
func SendDatagram(t *testing.T, addr string, payload []byte) {
	t.Helper()

	conn, err := net.Dial("udp4", addr)
	if err != nil {
		t.Fatalf("failed to dial %s: %v", addr, err)
	}
	defer conn.Close()

	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("failed to send datagram to %s: %v", addr, err)
	}
}

// ReadDatagram waits up to timeout for one datagram on conn.
func ReadDatagram(t *testing.T, conn *net.UDPConn, timeout time.Duration) []byte {
	t.Helper()

	buf := make([]byte, 65536)
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("failed to set read deadline: %v", err)
	}
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("no datagram on %s within %v: %v", conn.LocalAddr(), timeout, err)
	}
	return buf[:n]
}

// AssertNoDatagram checks that nothing arrives on conn within wait.
func AssertNoDatagram(t *testing.T, conn *net.UDPConn, wait time.Duration) {
	t.Helper()

	buf := make([]byte, 65536)
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	n, _, err := conn.ReadFromUDP(buf)
	if err == nil {
		t.Fatalf("expected no datagram on %s, got %d bytes", conn.LocalAddr(), n)
	}
}

// AssertPayloads checks got against want in order.
func AssertPayloads(t *testing.T, want, got [][]byte) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("expected %d payloads, got %d", len(want), len(got))
	}
	for i := range want {
		if !bytes.Equal(want[i], got[i]) {
			t.Fatalf("payload %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
