package relay

import (
	"log/slog"
	"net"
	"os"

	"golang.org/x/net/ipv4"

	"github.com/c360/magicportal/errors"
	"github.com/c360/magicportal/pkg/netif"
)

// interfaceResolver finds the local interface used to join a group.
type interfaceResolver interface {
	LookupIPv4(name string) (*net.Interface, net.IP, error)
}

var _ interfaceResolver = netif.Resolver{}

// listenGroup binds a UDP socket to the group address and joins the group on
// the named interface. readBuffer > 0 sets the socket receive buffer; failing
// to do so is logged and ignored.
func listenGroup(group Group, resolver interfaceResolver, readBuffer int, logger *slog.Logger) (*net.UDPConn, error) {
	addr, err := parseUDPAddr(group.Address)
	if err != nil {
		return nil, errors.WrapKind(errors.ErrAddressParse, err, "Forwarder", "listen", "parse group address")
	}
	if addr.IP.To4() == nil {
		return nil, errors.WrapKind(errors.ErrAddressParse, nil, "Forwarder", "listen",
			"group "+group.Address+" is not an IPv4 address")
	}

	iface, ifaceIP, err := resolver.LookupIPv4(group.Interface)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, errors.WrapKind(errors.ErrBind, err, "Forwarder", "listen", "bind "+group.Address)
	}

	if readBuffer > 0 {
		if err := conn.SetReadBuffer(readBuffer); err != nil {
			logger.Warn("Could not set UDP read buffer size",
				"buffer_size", readBuffer,
				"error", err)
		}
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.JoinGroup(iface, &net.UDPAddr{IP: addr.IP}); err != nil {
		_ = conn.Close()
		return nil, errors.WrapKind(errors.ErrMulticastJoin, err, "Forwarder", "listen",
			"join "+group.Address+" on "+group.Interface)
	}

	logger.Debug("Joined multicast group",
		"interface", iface.Name,
		"interface_addr", ifaceIP.String())

	return conn, nil
}

// peerOptions apply to multicast destinations only.
type peerOptions struct {
	ttl      int
	loopback *bool
}

// dialPeer binds an ephemeral local socket and connects it to dest.
func dialPeer(dest Destination, opts peerOptions, logger *slog.Logger) (*net.UDPConn, error) {
	conn, err := net.DialUDP("udp4", &net.UDPAddr{IP: net.IPv4zero}, dest.Addr)
	if err != nil {
		kind := errors.ErrConnect
		var sysErr *os.SyscallError
		if errors.As(err, &sysErr) && sysErr.Syscall == "bind" {
			kind = errors.ErrBind
		}
		return nil, errors.WrapKind(kind, err, "Agent", "dial", "connect to "+dest.Addr.String())
	}

	if dest.Kind != DestinationMulticast {
		return conn, nil
	}

	pc := ipv4.NewPacketConn(conn)
	if opts.ttl > 0 {
		if err := pc.SetMulticastTTL(opts.ttl); err != nil {
			logger.Warn("Could not set multicast TTL", "ttl", opts.ttl, "error", err)
		}
	}
	if opts.loopback != nil {
		if err := pc.SetMulticastLoopback(*opts.loopback); err != nil {
			logger.Warn("Could not set multicast loopback", "loopback", *opts.loopback, "error", err)
		}
	}

	return conn, nil
}
