// Package signal implements the two endpoint roles of the impulse
// protocol: the Emitter maps application symbols to impulse identifiers
// and transmits them, the Receiver maps incoming identifiers to
// behaviors and invokes them. One datagram carries one impulse; the
// transport guarantees nothing, and neither endpoint retries,
// acknowledges or reorders.
package signal

import (
	"net"

	"github.com/pkg/errors"

	"github.com/j-stach/phantom-limb/dgram"
	"github.com/j-stach/phantom-limb/tract"
	"github.com/j-stach/phantom-limb/wire"
)

// Emitter sends impulses to one peer. Q is the application's symbol
// type; any comparable type works as a trigger.
//
// An Emitter is driven by one goroutine at a time. Registration while a
// Transmit is in flight needs external serialization.
type Emitter[Q comparable] struct {
	name string
	conn net.PacketConn

	local  net.Addr
	target net.Addr

	spectrum map[Q]wire.Impulse
}

var _ tract.Sender = (*Emitter[string])(nil)

// NewEmitter binds a UDP socket to addr. Use port 0 to have the OS
// assign one; LocalAddr reports the address actually bound.
func NewEmitter[Q comparable](name, addr string) (*Emitter[Q], error) {
	conn, err := dgram.Listen(addr)
	if err != nil {
		return nil, errors.Wrap(err, "creating emitter socket")
	}

	return WrapEmitter[Q](name, conn), nil
}

// WrapEmitter adopts an already-bound datagram socket, which the
// emitter then owns exclusively.
func WrapEmitter[Q comparable](name string, conn net.PacketConn) *Emitter[Q] {
	return &Emitter[Q]{
		name:     name,
		conn:     conn,
		local:    conn.LocalAddr(),
		spectrum: make(map[Q]wire.Impulse),
	}
}

// Register maps a trigger symbol to an impulse identifier. A later
// registration for the same symbol silently replaces the earlier one;
// remapping at runtime is allowed.
func (e *Emitter[Q]) Register(symbol Q, id wire.Impulse) {
	e.spectrum[symbol] = id
}

// Connect fixes the peer every subsequent Transmit sends to. The peer
// must be prepared to handle every identifier this emitter maps.
func (e *Emitter[Q]) Connect(remote net.Addr) error {
	if remote == nil {
		return errors.New("nil remote address")
	}

	e.target = remote
	return nil
}

// Transmit sends the impulse registered for symbol as one datagram.
// It never retries and leaves no local state behind.
func (e *Emitter[Q]) Transmit(symbol Q) error {
	id, ok := e.spectrum[symbol]
	if !ok {
		return UnrecognizedTriggerError{Tract: e.name}
	}

	if e.target == nil {
		return dgram.ErrNoTarget
	}

	if _, err := e.conn.WriteTo(wire.Encode(id), e.target); err != nil {
		return errors.Wrap(err, "sending impulse")
	}

	return nil
}

// LocalAddr is the address the socket is bound to, independent of any
// Connect.
func (e *Emitter[Q]) LocalAddr() net.Addr { return e.local }

func (e *Emitter[Q]) Close() error { return e.conn.Close() }

func (e *Emitter[Q]) TractName() string { return e.name }

func (e *Emitter[Q]) NumFibers() int { return len(e.spectrum) }

// TractAddr is the current communication address: the target once
// connected, the bound address before that.
func (e *Emitter[Q]) TractAddr() net.Addr {
	if e.target != nil {
		return e.target
	}
	return e.local
}

// SetTargetAddr lets the topology layer retarget the emitter at
// runtime. It is Connect under the name the tract contract uses.
func (e *Emitter[Q]) SetTargetAddr(remote net.Addr) error {
	return e.Connect(remote)
}
