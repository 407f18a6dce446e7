// Package netif resolves network interface names to the IPv4 address used
// for multicast group membership.
package netif

import (
	"fmt"
	"net"

	"github.com/c360/magicportal/errors"
)

// Resolver looks up interfaces by name. The zero value uses the host's
// interface table.
type Resolver struct {
	// InterfaceByName and Addrs replace the net package lookups in tests.
	InterfaceByName func(name string) (*net.Interface, error)
	Addrs           func(iface *net.Interface) ([]net.Addr, error)
}

// LookupIPv4 returns the named interface and its first IPv4 address.
// Unknown interfaces and interfaces without an IPv4 address both fail with
// errors.ErrInterfaceNotFound.
func (r Resolver) LookupIPv4(name string) (*net.Interface, net.IP, error) {
	byName := r.InterfaceByName
	if byName == nil {
		byName = net.InterfaceByName
	}
	addrsOf := r.Addrs
	if addrsOf == nil {
		addrsOf = func(iface *net.Interface) ([]net.Addr, error) {
			return iface.Addrs()
		}
	}

	if name == "" {
		return nil, nil, errors.WrapKind(errors.ErrInterfaceNotFound, nil,
			"Resolver", "LookupIPv4", "interface name is empty")
	}

	iface, err := byName(name)
	if err != nil {
		return nil, nil, errors.WrapKind(errors.ErrInterfaceNotFound, err,
			"Resolver", "LookupIPv4", fmt.Sprintf("look up interface %q", name))
	}

	addrs, err := addrsOf(iface)
	if err != nil {
		return nil, nil, errors.WrapKind(errors.ErrInterfaceNotFound, err,
			"Resolver", "LookupIPv4", fmt.Sprintf("list addresses of %q", name))
	}

	for _, addr := range addrs {
		var ip net.IP
		switch a := addr.(type) {
		case *net.IPNet:
			ip = a.IP
		case *net.IPAddr:
			ip = a.IP
		}
		if v4 := ip.To4(); v4 != nil {
			return iface, v4, nil
		}
	}

	return nil, nil, errors.WrapKind(errors.ErrInterfaceNotFound, nil,
		"Resolver", "LookupIPv4", fmt.Sprintf("no IPv4 address on interface %q", name))
}

// LookupIPv4 resolves name against the host's interface table.
func LookupIPv4(name string) (*net.Interface, net.IP, error) {
	return Resolver{}.LookupIPv4(name)
}

// Loopback returns the name of the first up loopback interface that carries
// an IPv4 address, or "" if there is none.
func Loopback() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback == 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if _, _, err := LookupIPv4(iface.Name); err == nil {
			return iface.Name
		}
	}
	return ""
}
