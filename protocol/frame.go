package protocol

import "errors"

var (
	ErrFrameTooLarge = errors.New("frame exceeds maximum length")
)

// Frame is one decoded telemetry frame. Payload is a private copy; it
// stays valid after the next Scanner call.
type Frame struct {
	Type    uint8
	Payload []byte
}

// appendFramed wraps a payload builder in a complete frame: header with
// a length placeholder, payload appended in place, then the length
// patched and the CRC computed over header plus payload. The in-place
// patch avoids a second buffer on the firmware path.
func appendFramed(dst []byte, msgType uint8, payload func([]byte) []byte) ([]byte, error) {
	start := len(dst)
	dst = append(dst, 0, msgType)
	dst = payload(dst)

	total := len(dst) - start + FrameTrailerSize
	if total > FrameLengthMax {
		return dst[:start], ErrFrameTooLarge
	}
	dst[start] = uint8(total)

	crc := CRC16(dst[start:])
	return append(dst, uint8(crc>>8), uint8(crc&0xFF), FrameSync), nil
}

// AppendFrame appends a complete frame carrying payload to dst.
func AppendFrame(dst []byte, msgType uint8, payload []byte) ([]byte, error) {
	return appendFramed(dst, msgType, func(b []byte) []byte {
		return append(b, payload...)
	})
}

// Scanner reassembles frames from an arbitrary byte stream. Feed bytes
// with Write in whatever chunks the transport delivers, then drain
// completed frames with Next. After a length, CRC or sync violation the
// scanner discards input up to the next sync byte and resumes; frames
// lost that way only show up in the counters.
//
// Not safe for concurrent use; drive it from one reader goroutine.
type Scanner struct {
	buf     []byte
	synced  bool
	frames  uint32
	crcErr  uint32
	resyncs uint32
}

// NewScanner returns a Scanner that assumes the stream starts clean.
func NewScanner() *Scanner {
	return &Scanner{synced: true}
}

// Write buffers raw stream bytes. It never fails; the signature is
// io.Writer so a serial port can be copied straight into the scanner.
func (s *Scanner) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// Next returns the next complete frame, or ok=false when the buffered
// input holds none.
func (s *Scanner) Next() (frame Frame, ok bool) {
	for {
		if !s.synced {
			idx := -1
			for i, b := range s.buf {
				if b == FrameSync {
					idx = i
					break
				}
			}
			if idx < 0 {
				s.buf = s.buf[:0]
				return Frame{}, false
			}
			s.buf = s.buf[idx+1:]
			s.synced = true
			s.resyncs++
		}

		// Skip idle sync bytes between frames.
		for len(s.buf) > 0 && s.buf[0] == FrameSync {
			s.buf = s.buf[1:]
		}
		if len(s.buf) < FrameLengthMin {
			return Frame{}, false
		}

		n := int(s.buf[0])
		if n < FrameLengthMin || n > FrameLengthMax {
			s.synced = false
			continue
		}
		if len(s.buf) < n {
			return Frame{}, false
		}
		if s.buf[n-1] != FrameSync {
			s.synced = false
			continue
		}

		wire := uint16(s.buf[n-3])<<8 | uint16(s.buf[n-2])
		if CRC16(s.buf[:n-FrameTrailerSize]) != wire {
			s.crcErr++
			s.synced = false
			continue
		}

		frame = Frame{
			Type:    s.buf[1],
			Payload: append([]byte(nil), s.buf[FrameHeaderSize:n-FrameTrailerSize]...),
		}
		s.buf = s.buf[n:]
		s.frames++
		return frame, true
	}
}

// Frames returns the count of frames decoded.
func (s *Scanner) Frames() uint32 { return s.frames }

// CRCErrors returns the count of frames dropped for checksum mismatch.
func (s *Scanner) CRCErrors() uint32 { return s.crcErr }

// Resyncs returns how many times the scanner had to hunt for a sync
// byte after garbage.
func (s *Scanner) Resyncs() uint32 { return s.resyncs }
