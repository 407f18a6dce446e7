package natsclient

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubServer speaks just enough of the NATS protocol for a client to finish
// its handshake: INFO on accept and PONG for every PING. Everything else the
// client sends is read and discarded.
type stubServer struct {
	ln   net.Listener
	hold chan struct{}
	gone chan struct{}

	mu    sync.Mutex
	conns []net.Conn
}

// newStubServer starts a server on loopback. When held is true the INFO
// line is not sent until release is called.
func newStubServer(t *testing.T, held bool) *stubServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &stubServer{
		ln:   ln,
		hold: make(chan struct{}),
		gone: make(chan struct{}, 16),
	}
	if !held {
		close(s.hold)
	}
	t.Cleanup(s.dropClients)

	go s.accept()
	return s
}

func (s *stubServer) URL() string {
	return "nats://" + s.ln.Addr().String()
}

func (s *stubServer) release() {
	close(s.hold)
}

// dropClients stops accepting and closes every client connection, which
// sends connected clients into reconnect.
func (s *stubServer) dropClients() {
	_ = s.ln.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}

func (s *stubServer) accept() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		go s.serve(conn)
	}
}

func (s *stubServer) serve(conn net.Conn) {
	defer func() {
		s.gone <- struct{}{}
	}()

	<-s.hold
	if _, err := conn.Write([]byte(`INFO {"server_id":"stub","version":"2.10.0","proto":1,"max_payload":1048576}` + "\r\n")); err != nil {
		return
	}

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		if strings.TrimSpace(line) == "PING" {
			if _, err := conn.Write([]byte("PONG\r\n")); err != nil {
				return
			}
		}
	}
}
