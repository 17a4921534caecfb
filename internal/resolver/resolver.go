// Package resolver turns a configured host and port into a UDP destination.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

var (
	// ErrUnresolvable is returned when the host cannot be turned into an address.
	ErrUnresolvable = errors.New("host unresolvable")
	// ErrInvalidPort is returned for port 0.
	ErrInvalidPort = errors.New("invalid port")
)

// LookupFunc resolves a host name to addresses, like (*net.Resolver).LookupNetIP.
type LookupFunc func(ctx context.Context, network, host string) ([]netip.Addr, error)

// Resolver resolves destinations. The zero value uses net.DefaultResolver.
type Resolver struct {
	Lookup LookupFunc
}

// Default is the resolver used by Resolve.
var Default = &Resolver{}

// Resolve resolves host and port with the default resolver.
func Resolve(ctx context.Context, host string, port uint16) (*net.UDPAddr, error) {
	return Default.Resolve(ctx, host, port)
}

// Resolve returns the UDP address for host:port. Literal addresses are
// returned without a lookup; for names the first IPv4 answer wins, falling
// back to the first answer of any family.
func (r *Resolver) Resolve(ctx context.Context, host string, port uint16) (*net.UDPAddr, error) {
	if port == 0 {
		return nil, fmt.Errorf("%w: 0", ErrInvalidPort)
	}

	host = strings.TrimSpace(host)
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if host == "" {
		return nil, fmt.Errorf("%w: no host configured", ErrUnresolvable)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		return udpAddr(addr, port), nil
	}

	lookup := r.Lookup
	if lookup == nil {
		lookup = net.DefaultResolver.LookupNetIP
	}

	addrs, err := lookup(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnresolvable, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s: no addresses", ErrUnresolvable, host)
	}

	chosen := addrs[0]
	for _, a := range addrs {
		if a.Unmap().Is4() {
			chosen = a
			break
		}
	}

	return udpAddr(chosen, port), nil
}

func udpAddr(addr netip.Addr, port uint16) *net.UDPAddr {
	return net.UDPAddrFromAddrPort(netip.AddrPortFrom(addr.Unmap(), port))
}
