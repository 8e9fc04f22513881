package signal

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"

	"github.com/j-stach/phantom-limb/dgram"
	"github.com/j-stach/phantom-limb/dgram/pipe"
	"github.com/j-stach/phantom-limb/tract"
	"github.com/j-stach/phantom-limb/wire"
)

// EmitterTestSuite drives an emitter over the pipe fabric, with the
// peer socket held raw so tests can see exactly what hits the wire.
type EmitterTestSuite struct {
	suite.Suite

	clock *clock.Mock
	net   *pipe.Network

	emitter *Emitter[string]
	peer    net.PacketConn
}

func (s *EmitterTestSuite) SetupTest() {
	s.clock = clock.NewMock()
	s.net = pipe.NewNetwork(s.clock)

	conn, err := s.net.Listen(0)
	s.Require().NoError(err)
	s.emitter = WrapEmitter[string]("sensor-a", conn)

	s.peer, err = s.net.Listen(0)
	s.Require().NoError(err)
}

func (s *EmitterTestSuite) TearDownTest() {
	s.NoError(s.net.Close())
}

// peerFrame reads one datagram off the peer socket.
func (s *EmitterTestSuite) peerFrame() []byte {
	buf := make([]byte, 16)
	n, _, err := s.peer.ReadFrom(buf)
	s.Require().NoError(err)
	return buf[:n]
}

// peerSilent asserts nothing reached the peer socket.
func (s *EmitterTestSuite) peerSilent() {
	s.Require().NoError(s.peer.SetReadDeadline(s.clock.Now().Add(-time.Second)))
	s.clock.Add(time.Millisecond)

	_, _, err := s.peer.ReadFrom(make([]byte, 16))
	s.Require().ErrorIs(err, os.ErrDeadlineExceeded)

	s.Require().NoError(s.peer.SetReadDeadline(time.Time{}))
}

func (s *EmitterTestSuite) TestTransmit() {
	s.emitter.Register("spike", 7)
	s.Require().NoError(s.emitter.Connect(s.peer.LocalAddr()))

	s.Require().NoError(s.emitter.Transmit("spike"))

	s.Equal(wire.Encode(7), s.peerFrame())
}

func (s *EmitterTestSuite) TestTransmitUnregistered() {
	s.emitter.Register("spike", 7)
	s.Require().NoError(s.emitter.Connect(s.peer.LocalAddr()))

	err := s.emitter.Transmit("unknown")

	trigger := UnrecognizedTriggerError{}
	s.Require().ErrorAs(err, &trigger)
	s.Equal("sensor-a", trigger.Tract)

	// The failed transmit sent nothing.
	s.peerSilent()
}

func (s *EmitterTestSuite) TestTransmitWithoutConnect() {
	s.emitter.Register("spike", 7)

	err := s.emitter.Transmit("spike")
	s.ErrorIs(err, dgram.ErrNoTarget)
	s.peerSilent()
}

func (s *EmitterTestSuite) TestRegisterOverwrites() {
	s.Require().NoError(s.emitter.Connect(s.peer.LocalAddr()))

	// Later registrations win. Remapping is allowed, not an error.
	s.emitter.Register("spike", 7)
	s.emitter.Register("spike", 8)

	s.Equal(1, s.emitter.NumFibers())

	s.Require().NoError(s.emitter.Transmit("spike"))
	s.Equal(wire.Encode(8), s.peerFrame())
}

func (s *EmitterTestSuite) TestConnectNil() {
	s.Error(s.emitter.Connect(nil))
}

func (s *EmitterTestSuite) TestTractAddr() {
	// Before connecting: the bound address.
	s.Equal(s.emitter.LocalAddr(), s.emitter.TractAddr())

	s.Require().NoError(s.emitter.Connect(s.peer.LocalAddr()))

	// After connecting: the target.
	s.Equal(s.peer.LocalAddr(), s.emitter.TractAddr())
	s.NotEqual(s.emitter.LocalAddr(), s.emitter.TractAddr())
}

func (s *EmitterTestSuite) TestRetarget() {
	other, err := s.net.Listen(0)
	s.Require().NoError(err)

	s.emitter.Register("spike", 7)
	s.Require().NoError(s.emitter.Connect(s.peer.LocalAddr()))

	var _ tract.Sender = s.emitter
	s.Require().NoError(s.emitter.SetTargetAddr(other.LocalAddr()))

	s.Require().NoError(s.emitter.Transmit("spike"))

	buf := make([]byte, 16)
	n, _, err := other.ReadFrom(buf)
	s.Require().NoError(err)
	s.Equal(wire.Encode(7), buf[:n])

	s.peerSilent()
}

func (s *EmitterTestSuite) TestTractName() {
	s.Equal("sensor-a", s.emitter.TractName())
}

func TestEmitterTestSuite(t *testing.T) {
	suite.Run(t, new(EmitterTestSuite))
}

func TestNewEmitterBadAddr(t *testing.T) {
	_, err := NewEmitter[string]("sensor-a", "not-an-address")
	if err == nil {
		t.Fatal("expected bind failure")
	}
}
