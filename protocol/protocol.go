// Package protocol implements the trace wire format the firmware uses to
// stream scheduler events to the host.
//
// A frame is
//
//	[len][seq][payload...][crc hi][crc lo][0x7E]
//
// where len counts the whole frame, the high nibble of seq is always 0x10
// and the CRC covers len, seq and the payload. The payload is a series of
// events, each encoded as VLQ integers.
package protocol

import "errors"

// Version is the trace format version
const Version = "1"

// Frame layout constants
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F

	// MaxEventSize is the worst-case encoded size of one event:
	// kind plus five 32-bit words, each at most 5 VLQ bytes
	MaxEventSize = 1 + 5*5

	// EventsPerFrame always fit into one frame
	EventsPerFrame = (MessageLengthMax - MessageLengthMin) / MaxEventSize
)

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
	ErrBadFrame       = errors.New("malformed frame")
	ErrBadCRC         = errors.New("frame CRC mismatch")
	ErrUnknownEvent   = errors.New("unknown event kind")
	ErrNeedMore       = errors.New("incomplete frame")
)

// Frame is a decoded trace frame
type Frame struct {
	Seq     uint8 // low nibble of the sequence byte
	Payload []byte
}
