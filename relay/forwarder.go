package relay

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/c360/magicportal/config"
	"github.com/c360/magicportal/errors"
	"github.com/c360/magicportal/pkg/netif"
)

// ForwarderDeps holds runtime dependencies for a forwarder task
type ForwarderDeps struct {
	Group         Group
	Bus           Bus
	MaxPacketSize int // receive buffer size; longer datagrams are truncated
	ReadBuffer    int // socket receive buffer, 0 keeps the OS default
	Metrics       *Metrics
	Logger        *slog.Logger
}

// Forwarder relays datagrams from one multicast group to the bus subject
// named after the group.
type Forwarder struct {
	group         Group
	bus           Bus
	maxPacketSize int
	readBuffer    int
	metrics       *groupMetrics
	logger        *slog.Logger

	resolver interfaceResolver
	listen   func() (net.PacketConn, error)

	ready     chan struct{}
	readyOnce sync.Once
}

// NewForwarder creates a forwarder task for deps.Group.
func NewForwarder(deps ForwarderDeps) *Forwarder {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "relay")
	}
	logger = logger.With("mode", string(config.ModeForwarder), "group", deps.Group.Address)

	maxPacketSize := deps.MaxPacketSize
	if maxPacketSize <= 0 {
		maxPacketSize = config.DefaultMaxPacketSize
	}

	f := &Forwarder{
		group:         deps.Group,
		bus:           deps.Bus,
		maxPacketSize: maxPacketSize,
		readBuffer:    deps.ReadBuffer,
		metrics:       deps.Metrics.forGroup(string(config.ModeForwarder), deps.Group),
		logger:        logger,
		resolver:      netif.Resolver{},
		ready:         make(chan struct{}),
	}
	f.listen = func() (net.PacketConn, error) {
		return listenGroup(f.group, f.resolver, f.readBuffer, f.logger)
	}
	return f
}

// Group returns the group this task relays.
func (f *Forwarder) Group() Group { return f.group }

// Mode returns "forwarder".
func (f *Forwarder) Mode() string { return string(config.ModeForwarder) }

// Ready is closed once the socket has joined the group and the read loop
// is about to start.
func (f *Forwarder) Ready() <-chan struct{} { return f.ready }

// Run joins the group and publishes every datagram until ctx is cancelled
// or an I/O error occurs. Cancellation returns nil.
func (f *Forwarder) Run(ctx context.Context) error {
	if f.bus == nil {
		return errors.WrapKind(errors.ErrConfiguration, nil, "Forwarder", "Run", "bus is required")
	}

	conn, err := f.listen()
	if err != nil {
		f.metrics.failed(err)
		return err
	}
	defer conn.Close()

	// an expired deadline unblocks the pending read
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	f.logger.Info("Forwarding multicast group", "subject", f.group.Subject(), "max_packet_size", f.maxPacketSize)
	f.readyOnce.Do(func() { close(f.ready) })

	buf := make([]byte, f.maxPacketSize)
	subject := f.group.Subject()

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			err = errors.WrapKind(errors.ErrReceive, err, "Forwarder", "Run", "read datagram")
			f.metrics.failed(err)
			return err
		}
		f.metrics.received(n)

		if err := f.bus.Publish(ctx, subject, buf[:n]); err != nil {
			err = errors.WrapKind(errors.ErrPublish, err, "Forwarder", "Run", "publish to "+subject)
			f.metrics.failed(err)
			return err
		}
		f.metrics.published()

		f.logger.Debug("Forwarded datagram", "bytes", n, "source", src)
	}
}
