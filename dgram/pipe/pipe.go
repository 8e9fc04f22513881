// Package pipe provides an in-process datagram fabric implementing
// [net.PacketConn], with UDP-like semantics: unordered best-effort
// delivery, silent drops to unbound ports, per-socket read/write
// deadlines.
package pipe

import (
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/j-stach/phantom-limb/dgram"
)

// Addr is a fabric address. Ports share one flat space per Network.
type Addr struct {
	Port uint16
}

var _ net.Addr = Addr{}

func (a Addr) Network() string { return "pipe" }

func (a Addr) String() string {
	return "pipe:" + strconv.FormatUint(uint64(a.Port), 10)
}

// queueDepth bounds undelivered datagrams per socket. Sends beyond it
// are dropped, like a full OS receive buffer.
const queueDepth = 64

// Network is a process-local datagram fabric.
type Network struct {
	socks  map[uint16]*sock
	ports  *portTable
	clock  clock.Clock
	closed bool

	mu sync.Mutex
}

func NewNetwork(clk clock.Clock) *Network {
	return &Network{
		socks: make(map[uint16]*sock),
		ports: newPortTable(),
		clock: clk,
	}
}

var ErrNetworkClosed = errors.New("pipe network is closed")

// Listen binds a socket to port. Port 0 draws an ephemeral port.
func (n *Network) Listen(port uint16) (net.PacketConn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, ErrNetworkClosed
	}

	ok, assigned, release := n.ports.occupy(port)
	if !ok {
		return nil, errors.Errorf("port %d is already in use", port)
	}

	s := &sock{
		net:       n,
		addr:      Addr{Port: assigned},
		queue:     make(chan packet, queueDepth),
		closed:    make(chan struct{}),
		release:   release,
		rdeadline: newDeadline(n.clock),
		wdeadline: newDeadline(n.clock),
	}

	n.socks[assigned] = s
	return s, nil
}

// Close tears down the fabric and every socket bound to it.
func (n *Network) Close() error {
	n.mu.Lock()
	socks := make([]*sock, 0, len(n.socks))
	for _, s := range n.socks {
		socks = append(socks, s)
	}
	n.closed = true
	n.mu.Unlock()

	for _, s := range socks {
		s.Close()
	}
	return nil
}

func (n *Network) deliver(to uint16, p packet) {
	n.mu.Lock()
	s, ok := n.socks[to]
	n.mu.Unlock()

	if !ok {
		// Nothing bound there. Datagrams don't bounce.
		return
	}

	select {
	case s.queue <- p:
	case <-s.closed:
	default:
		// Queue full, drop.
	}
}

func (n *Network) unbind(port uint16) {
	n.mu.Lock()
	delete(n.socks, port)
	n.mu.Unlock()
}

type packet struct {
	from Addr
	data []byte
}

type sock struct {
	net  *Network
	addr Addr

	queue   chan packet
	closed  chan struct{}
	once    sync.Once
	release func()

	rdeadline *deadline
	wdeadline *deadline
}

var _ net.PacketConn = (*sock)(nil)

func (s *sock) LocalAddr() net.Addr { return s.addr }

func (s *sock) ReadFrom(p []byte) (int, net.Addr, error) {
	if isClosed(s.closed) {
		return 0, nil, dgram.ErrClosed
	}

	select {
	case pkt := <-s.queue:
		n := copy(p, pkt.data)
		return n, pkt.from, nil
	case <-s.closed:
		return 0, nil, dgram.ErrClosed
	case <-s.rdeadline.wait():
		return 0, nil, os.ErrDeadlineExceeded
	}
}

func (s *sock) WriteTo(p []byte, addr net.Addr) (int, error) {
	if isClosed(s.closed) {
		return 0, dgram.ErrClosed
	}
	if isClosed(s.wdeadline.wait()) {
		return 0, os.ErrDeadlineExceeded
	}

	to, ok := addr.(Addr)
	if !ok {
		return 0, errors.Errorf("foreign address %q", addr)
	}

	data := make([]byte, len(p))
	copy(data, p)

	s.net.deliver(to.Port, packet{from: s.addr, data: data})
	return len(p), nil
}

func (s *sock) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.net.unbind(s.addr.Port)
		s.release()
	})
	return nil
}

func (s *sock) SetDeadline(t time.Time) error {
	s.rdeadline.set(t)
	s.wdeadline.set(t)
	return nil
}

func (s *sock) SetReadDeadline(t time.Time) error {
	s.rdeadline.set(t)
	return nil
}

func (s *sock) SetWriteDeadline(t time.Time) error {
	s.wdeadline.set(t)
	return nil
}

// deadline turns an absolute time into a channel that closes when the
// time passes, driven by an injectable clock.
type deadline struct {
	clock clock.Clock

	t *clock.Timer
	m sync.Mutex

	expired chan struct{}
}

func newDeadline(clk clock.Clock) *deadline {
	return &deadline{
		clock:   clk,
		expired: make(chan struct{}),
	}
}

func (d *deadline) set(t time.Time) {
	d.m.Lock()
	defer d.m.Unlock()

	if d.t != nil {
		d.t.Stop()
	}
	d.t = nil

	if isClosed(d.expired) {
		d.expired = make(chan struct{})
	}

	if t.IsZero() {
		// Zero value means no limit.
		return
	}

	d.t = d.clock.AfterFunc(d.clock.Until(t), func() {
		close(d.expired)
	})
}

func (d *deadline) wait() <-chan struct{} {
	d.m.Lock()
	defer d.m.Unlock()
	return d.expired
}

func isClosed(c <-chan struct{}) bool {
	select {
	case <-c:
		return true
	default:
		return false
	}
}
