package pipe

import (
	"math/rand"
	"sync"
)

// Ephemeral range follows the IANA suggestion.
const (
	ephemeralStart uint16 = 49152
	ephemeralEnd   uint16 = 65535

	maxEphemeralTries = 32
)

type portTable struct {
	table map[uint16]struct{}
	rand  func() uint16

	mu sync.Mutex
}

func newPortTable() *portTable {
	return &portTable{
		table: make(map[uint16]struct{}),
		rand:  func() uint16 { return uint16(rand.Uint32()) },
	}
}

// occupy claims port, or an ephemeral one when port is 0. release gives
// the claimed port back.
func (p *portTable) occupy(port uint16) (ok bool, result uint16, release func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if port == 0 {
		return p.occupyEphemeralLocked()
	}

	if ok, release := p.occupyLocked(port); ok {
		return true, port, release
	}

	return false, 0, nil
}

func (p *portTable) occupyEphemeralLocked() (ok bool, port uint16, release func()) {
	for try := 0; try < maxEphemeralTries; try++ {
		gap := ephemeralEnd - ephemeralStart
		port := ephemeralStart + (p.rand() % gap)

		if ok, release := p.occupyLocked(port); ok {
			return true, port, release
		}
	}

	return false, 0, nil
}

func (p *portTable) occupyLocked(port uint16) (ok bool, release func()) {
	if _, found := p.table[port]; found {
		return false, nil
	}

	p.table[port] = struct{}{}

	release = func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.table, port)
	}

	return true, release
}
