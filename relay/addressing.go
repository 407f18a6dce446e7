package relay

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/c360/magicportal/errors"
)

// DestinationKind tells whether an agent sends to its group or to a unicast peer.
type DestinationKind int

const (
	DestinationMulticast DestinationKind = iota
	DestinationUnicast
)

func (k DestinationKind) String() string {
	switch k {
	case DestinationMulticast:
		return "multicast"
	case DestinationUnicast:
		return "unicast"
	default:
		return "unknown"
	}
}

// Destination is where an agent task writes its datagrams. It is resolved
// once when the task starts.
type Destination struct {
	Kind DestinationKind
	Addr *net.UDPAddr
}

func (d Destination) String() string {
	return fmt.Sprintf("%s %s", d.Kind, d.Addr)
}

// ResolveDestination decides the agent destination for group. Without
// SendAsUnicast the group address is used and UnicastAddrs is ignored.
// With it, a missing map or a missing entry is a configuration error.
func ResolveDestination(group Group, addressing Addressing) (Destination, error) {
	if !addressing.SendAsUnicast {
		addr, err := parseUDPAddr(group.Address)
		if err != nil {
			return Destination{}, errors.WrapKind(errors.ErrAddressParse, err,
				"Agent", "ResolveDestination", "parse group address")
		}
		return Destination{Kind: DestinationMulticast, Addr: addr}, nil
	}

	if addressing.UnicastAddrs == nil {
		return Destination{}, errors.WrapKind(errors.ErrConfiguration, nil,
			"Agent", "ResolveDestination", "unicast_addrs can't be empty if send_as_unicast is true")
	}

	target, ok := addressing.UnicastAddrs[group.Address]
	if !ok {
		return Destination{}, errors.WrapKind(errors.ErrConfiguration, nil,
			"Agent", "ResolveDestination", fmt.Sprintf("group %s not found in unicast map", group.Address))
	}

	addr, err := parseUDPAddr(target)
	if err != nil {
		return Destination{}, errors.WrapKind(errors.ErrAddressParse, err,
			"Agent", "ResolveDestination", "parse unicast address for "+group.Address)
	}
	return Destination{Kind: DestinationUnicast, Addr: addr}, nil
}

// parseUDPAddr accepts a literal "ip:port". Host names are rejected.
func parseUDPAddr(s string) (*net.UDPAddr, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return nil, err
	}
	return net.UDPAddrFromAddrPort(netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())), nil
}
