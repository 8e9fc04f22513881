// Package wire defines the frame format shared by both endpoint roles.
//
// One datagram carries exactly one impulse identifier, a 16-bit unsigned
// integer in network byte order. The datagram boundary is the framing;
// there is no header, length prefix, checksum or version field.
package wire

import (
	"encoding/binary"
	"strconv"

	"github.com/pkg/errors"
)

// Impulse identifies one discrete event. It is the entire semantic
// payload of a datagram.
type Impulse uint16

func (i Impulse) String() string {
	return strconv.FormatUint(uint64(i), 10)
}

// FrameSize is the exact length in bytes of one encoded impulse.
const FrameSize = 2

var (
	ErrFrameTooShort = errors.New("frame is shorter than one impulse")
	ErrFrameTooLong  = errors.New("frame carries trailing bytes")
)

// Encode returns the frame for i. It cannot fail for any Impulse value.
func Encode(i Impulse) []byte {
	return AppendEncode(nil, i)
}

// AppendEncode appends the frame for i to b and returns the extended slice.
func AppendEncode(b []byte, i Impulse) []byte {
	return binary.BigEndian.AppendUint16(b, uint16(i))
}

// Decode parses exactly one frame. Datagrams from non-conforming peers
// (truncated, or longer than one frame) are rejected rather than
// interpreted partially.
func Decode(b []byte) (Impulse, error) {
	if len(b) < FrameSize {
		return 0, errors.Wrapf(ErrFrameTooShort, "got %d bytes", len(b))
	}
	if len(b) > FrameSize {
		return 0, errors.Wrapf(ErrFrameTooLong, "got %d bytes", len(b))
	}

	return Impulse(binary.BigEndian.Uint16(b)), nil
}
