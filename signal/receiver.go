package signal

import (
	"net"

	"github.com/pkg/errors"

	"github.com/j-stach/phantom-limb/dgram"
	"github.com/j-stach/phantom-limb/tract"
	"github.com/j-stach/phantom-limb/wire"
)

// Behavior is the action a Receiver runs when its impulse arrives. All
// behaviors of one Receiver share the argument and result types.
type Behavior[A, R any] func(A) R

// Receiver dispatches incoming impulses to registered behaviors.
//
// Like the Emitter, a Receiver is driven by one goroutine at a time;
// Register during an in-flight Receive needs external serialization.
type Receiver[A, R any] struct {
	name string
	conn net.PacketConn

	local net.Addr

	fibers map[wire.Impulse]Behavior[A, R]
}

var _ tract.Receiver = (*Receiver[int, int])(nil)

// NewReceiver binds a UDP socket to addr, with the same port-0
// semantics as NewEmitter. Other endpoints target LocalAddr.
func NewReceiver[A, R any](name, addr string) (*Receiver[A, R], error) {
	conn, err := dgram.Listen(addr)
	if err != nil {
		return nil, errors.Wrap(err, "creating receiver socket")
	}

	return WrapReceiver[A, R](name, conn), nil
}

// WrapReceiver adopts an already-bound datagram socket, which the
// receiver then owns exclusively.
func WrapReceiver[A, R any](name string, conn net.PacketConn) *Receiver[A, R] {
	return &Receiver[A, R]{
		name:   name,
		conn:   conn,
		local:  conn.LocalAddr(),
		fibers: make(map[wire.Impulse]Behavior[A, R]),
	}
}

// Register maps an impulse identifier to a behavior. A later
// registration for the same identifier silently replaces the earlier
// one, mirroring Emitter.Register.
func (r *Receiver[A, R]) Register(id wire.Impulse, behavior Behavior[A, R]) {
	r.fibers[id] = behavior
}

// Receive blocks until one datagram arrives in buf, decodes it and runs
// the matching behavior with args, returning the behavior's result.
// Only the bytes actually received are interpreted.
//
// There is no timeout and no cancellation here; to abandon the wait,
// close the receiver (see Loop for a supervised version).
func (r *Receiver[A, R]) Receive(buf []byte, args A) (R, error) {
	var zero R

	n, _, err := r.conn.ReadFrom(buf)
	if err != nil {
		return zero, errors.Wrap(err, "receiving impulse")
	}

	id, err := wire.Decode(buf[:n])
	if err != nil {
		return zero, errors.Wrap(err, "decoding impulse")
	}

	behavior, ok := r.fibers[id]
	if !ok {
		return zero, UnrecognizedImpulseError{Impulse: id}
	}

	return behavior(args), nil
}

// LocalAddr is the bound address other endpoints must target.
func (r *Receiver[A, R]) LocalAddr() net.Addr { return r.local }

// Close releases the socket and unblocks a pending Receive.
func (r *Receiver[A, R]) Close() error { return r.conn.Close() }

func (r *Receiver[A, R]) TractName() string { return r.name }

func (r *Receiver[A, R]) NumFibers() int { return len(r.fibers) }

func (r *Receiver[A, R]) TractAddr() net.Addr { return r.local }

// CanReceive marks the receiving capability for the tract contract.
func (r *Receiver[A, R]) CanReceive() {}
