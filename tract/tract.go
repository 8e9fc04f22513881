// Package tract declares the contract between signaling endpoints and
// the topology layer that pairs them up. The topology layer itself
// lives outside this module; endpoints only have to satisfy these
// interfaces to be adopted as named network participants.
package tract

import "net"

// Tract is a named endpoint participating in a point-to-point tract.
type Tract interface {
	// TractName is the label the topology layer matches endpoints by.
	// It is never transmitted on the wire.
	TractName() string

	// NumFibers is the number of impulse identifiers the endpoint
	// currently maps.
	NumFibers() int

	// TractAddr is the endpoint's current communication address: the
	// bound address, or for a sender with a fixed peer, the target.
	TractAddr() net.Addr
}

// Sender is a tract endpoint that emits impulses and whose target can
// be reassigned at runtime.
type Sender interface {
	Tract

	SetTargetAddr(remote net.Addr) error
}

// Receiver is a tract endpoint that can receive impulses. CanReceive
// is a capability marker with no effect.
type Receiver interface {
	Tract

	CanReceive()
}
