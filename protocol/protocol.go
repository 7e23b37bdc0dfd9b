// Package protocol implements the jiffy telemetry wire format: a
// one-way stream of small framed messages from the firmware to the
// host. Each frame is [length][type][payload][crc16 hi][crc16 lo][sync]
// with integers inside the payload in VLQ form. The stream carries no
// acknowledgements; receivers resynchronize on the trailing sync byte
// after corruption and treat lost frames as acceptable.
package protocol

// Version identifies the telemetry format generation. It rides in every
// dictionary frame so mismatched host tools can say so instead of
// misparsing.
const Version = 1

// Frame layout
const (
	FrameHeaderSize  = 2 // length + type
	FrameTrailerSize = 3 // crc16 + sync
	FrameLengthMin   = FrameHeaderSize + FrameTrailerSize
	FrameLengthMax   = 64
	FrameSync        = 0x7E
)

// Frame types
const (
	MsgDict  = 0x01 // timer identity: rate, token, flags, name
	MsgFire  = 0x02 // one expiry: token, fire tick, armed deadline
	MsgStats = 0x03 // per-timer running totals
	MsgMark  = 0x04 // free-form annotation at a tick
)
