package signal

import (
	"fmt"
	"net"

	"github.com/pkg/errors"

	"github.com/j-stach/phantom-limb/dgram"
	"github.com/j-stach/phantom-limb/wire"
)

// UnrecognizedImpulseError reports a well-formed frame whose identifier
// has no registered behavior. The tables on the two ends are out of
// sync; the transport is fine.
type UnrecognizedImpulseError struct {
	Impulse wire.Impulse
}

func (e UnrecognizedImpulseError) Error() string {
	return fmt.Sprintf("unrecognized impulse via fiber id %s", e.Impulse)
}

// UnrecognizedTriggerError reports a transmit of a symbol the emitter
// never registered. It names the emitter rather than the symbol, since
// symbol types need not be printable.
type UnrecognizedTriggerError struct {
	Tract string
}

func (e UnrecognizedTriggerError) Error() string {
	return fmt.Sprintf("unrecognized trigger from emitter %q", e.Tract)
}

// isClosedErr reports whether err came from a closed socket, across
// both OS sockets and the pipe fabric.
func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, dgram.ErrClosed)
}

// isDecodeErr reports whether err came from a datagram that is not one
// well-formed frame.
func isDecodeErr(err error) bool {
	return errors.Is(err, wire.ErrFrameTooShort) || errors.Is(err, wire.ErrFrameTooLong)
}
