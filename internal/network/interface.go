package network

import (
	"context"
	"net"
)

// Conn is the socket the worker writes frames to. net.Conn satisfies it.
type Conn interface {
	Write(b []byte) (int, error)
	Close() error
}

// DialFunc opens a socket bound for addr.
type DialFunc func(ctx context.Context, addr *net.UDPAddr) (Conn, error)

// Resolver turns a configured host and port into an address.
type Resolver interface {
	Resolve(ctx context.Context, host string, port uint16) (*net.UDPAddr, error)
}

// DestinationFunc reports the currently configured destination.
type DestinationFunc func() (host string, port uint16)

// DialUDP opens a connected UDP socket to addr.
func DialUDP(ctx context.Context, addr *net.UDPAddr) (Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "udp", addr.String())
}
