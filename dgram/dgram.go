// Package dgram is the datagram transport layer shared by both endpoint
// roles. The socket contract is [net.PacketConn]; this package provides
// UDP binding and address resolution, and dgram/pipe provides an
// in-memory fabric satisfying the same contract.
package dgram

import (
	"net"

	"github.com/pkg/errors"
)

var (
	// ErrClosed reports an operation on a closed socket.
	ErrClosed = errors.New("datagram socket is closed")

	// ErrNoTarget reports a send attempted before any peer association.
	ErrNoTarget = errors.New("no target address is set")
)

// Listen binds a UDP socket to addr. Port 0 requests OS assignment;
// the assigned port is visible through the conn's LocalAddr.
func Listen(addr string) (net.PacketConn, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "binding datagram socket")
	}
	return conn, nil
}

// ResolveAddr resolves a host:port string into a UDP address usable as
// a send target.
func ResolveAddr(addr string) (net.Addr, error) {
	udp, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "resolving target address")
	}
	return udp, nil
}
