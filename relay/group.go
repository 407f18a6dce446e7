package relay

import (
	"context"

	"github.com/c360/magicportal/config"
	"github.com/c360/magicportal/natsclient"
)

// Group identifies one multicast group. Address is "ip:port" and doubles as
// the bus subject. Interface names the local interface used to join the
// group and is only read in forwarder mode.
type Group struct {
	Address   string
	Interface string
}

// Subject returns the bus subject for the group.
func (g Group) Subject() string {
	return g.Address
}

func (g Group) String() string {
	if g.Interface == "" {
		return g.Address
	}
	return g.Address + "@" + g.Interface
}

// GroupsFromConfig converts configured groups in order. Duplicate addresses
// are kept.
func GroupsFromConfig(groups []config.GroupConfig) []Group {
	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, Group{Address: g.MulticastAddr, Interface: g.Interface})
	}
	return out
}

// Addressing controls where the agent sends datagrams. UnicastAddrs maps a
// group address to a unicast "ip:port"; nil means no map was configured.
type Addressing struct {
	SendAsUnicast bool
	UnicastAddrs  map[string]string
}

// Bus is the part of the message bus used by relay tasks. It must be safe
// for concurrent use; every task shares one handle.
type Bus interface {
	Publish(ctx context.Context, subject string, data []byte) error
	SubscribeStream(ctx context.Context, subject string) (natsclient.MessageStream, error)
}

var _ Bus = (*natsclient.Client)(nil)
