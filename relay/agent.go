package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/c360/magicportal/config"
	"github.com/c360/magicportal/errors"
	"github.com/c360/magicportal/natsclient"
)

// AgentDeps holds runtime dependencies for an agent task
type AgentDeps struct {
	Group      Group
	Bus        Bus
	Addressing Addressing

	// Applied only when the destination is the multicast group.
	MulticastTTL      int
	MulticastLoopback *bool

	Metrics *Metrics
	Logger  *slog.Logger
}

// Agent relays bus messages for one group back onto UDP, either to the
// group itself or to its configured unicast peer.
type Agent struct {
	group      Group
	bus        Bus
	addressing Addressing
	peer       peerOptions
	metrics    *groupMetrics
	logger     *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

// NewAgent creates an agent task for deps.Group.
func NewAgent(deps AgentDeps) *Agent {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "relay")
	}

	return &Agent{
		group:      deps.Group,
		bus:        deps.Bus,
		addressing: deps.Addressing,
		peer: peerOptions{
			ttl:      deps.MulticastTTL,
			loopback: deps.MulticastLoopback,
		},
		metrics: deps.Metrics.forGroup(string(config.ModeAgent), deps.Group),
		logger:  logger.With("mode", string(config.ModeAgent), "group", deps.Group.Address),
		ready:   make(chan struct{}),
	}
}

// Group returns the group this task relays.
func (a *Agent) Group() Group { return a.group }

// Mode returns "agent".
func (a *Agent) Mode() string { return string(config.ModeAgent) }

// Ready is closed once the subscription is active and the socket connected.
func (a *Agent) Ready() <-chan struct{} { return a.ready }

// Run subscribes to the group subject and writes every payload to the
// resolved destination. It returns nil when ctx is cancelled or the bus
// closes the subscription.
func (a *Agent) Run(ctx context.Context) error {
	if a.bus == nil {
		return errors.WrapKind(errors.ErrConfiguration, nil, "Agent", "Run", "bus is required")
	}

	dest, err := ResolveDestination(a.group, a.addressing)
	if err != nil {
		a.metrics.failed(err)
		return err
	}

	subject := a.group.Subject()
	stream, err := a.bus.SubscribeStream(ctx, subject)
	if err != nil {
		err = errors.WrapKind(errors.ErrSubscribe, err, "Agent", "Run", "subscribe to "+subject)
		a.metrics.failed(err)
		return err
	}
	defer func() {
		if err := stream.Unsubscribe(); err != nil {
			a.logger.Warn("Unsubscribe failed", "error", err)
		}
	}()

	conn, err := dialPeer(dest, a.peer, a.logger)
	if err != nil {
		a.metrics.failed(err)
		return err
	}
	defer conn.Close()

	a.logger.Info("Relaying bus messages", "subject", subject, "destination", dest.String())
	a.readyOnce.Do(func() { close(a.ready) })

	for {
		if ctx.Err() != nil {
			return nil
		}

		data, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, natsclient.ErrStreamClosed) {
				a.logger.Info("Subscription closed by the bus")
				return nil
			}
			err = errors.WrapKind(errors.ErrSubscribe, err, "Agent", "Run", "receive from "+subject)
			a.metrics.failed(err)
			return err
		}
		a.metrics.consumed()

		n, err := conn.Write(data)
		if err != nil {
			err = errors.WrapKind(errors.ErrSend, err, "Agent", "Run", "send to "+dest.Addr.String())
			a.metrics.failed(err)
			return err
		}
		a.metrics.sent(n)

		a.logger.Debug("Sent datagram", "bytes", n)
	}
}
