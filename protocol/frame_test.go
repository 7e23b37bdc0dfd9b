package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	buf, err := AppendFrame(nil, MsgFire, payload)
	if err != nil {
		t.Fatalf("AppendFrame failed: %v", err)
	}
	if len(buf) != FrameHeaderSize+len(payload)+FrameTrailerSize {
		t.Errorf("Expected frame length %d, got %d", FrameHeaderSize+len(payload)+FrameTrailerSize, len(buf))
	}
	if buf[0] != uint8(len(buf)) {
		t.Errorf("Expected length byte %d, got %d", len(buf), buf[0])
	}
	if buf[len(buf)-1] != FrameSync {
		t.Errorf("Expected trailing sync byte, got %#x", buf[len(buf)-1])
	}

	s := NewScanner()
	if _, err := s.Write(buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	frame, ok := s.Next()
	if !ok {
		t.Fatal("Expected a frame")
	}
	if frame.Type != MsgFire {
		t.Errorf("Expected type %#x, got %#x", MsgFire, frame.Type)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Errorf("Expected payload %v, got %v", payload, frame.Payload)
	}
	if _, ok := s.Next(); ok {
		t.Error("Expected no second frame")
	}
	if s.Frames() != 1 {
		t.Errorf("Expected 1 decoded frame, got %d", s.Frames())
	}
}

func TestFrameEmptyPayload(t *testing.T) {
	buf, err := AppendFrame(nil, MsgMark, nil)
	if err != nil {
		t.Fatalf("AppendFrame failed: %v", err)
	}
	if len(buf) != FrameLengthMin {
		t.Errorf("Expected minimum frame length %d, got %d", FrameLengthMin, len(buf))
	}

	s := NewScanner()
	s.Write(buf)
	frame, ok := s.Next()
	if !ok {
		t.Fatal("Expected a frame")
	}
	if len(frame.Payload) != 0 {
		t.Errorf("Expected empty payload, got %v", frame.Payload)
	}
}

func TestFrameTooLarge(t *testing.T) {
	payload := make([]byte, FrameLengthMax)
	before := []byte{0xAA}
	buf, err := AppendFrame(before, MsgMark, payload)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("Expected ErrFrameTooLarge, got %v", err)
	}
	// The failed frame must not leave partial bytes behind.
	if !bytes.Equal(buf, before) {
		t.Errorf("Expected dst rolled back to %v, got %v", before, buf)
	}
}

func TestScannerChunkedDelivery(t *testing.T) {
	buf, err := AppendFrame(nil, MsgStats, []byte{9, 8, 7, 6})
	if err != nil {
		t.Fatalf("AppendFrame failed: %v", err)
	}

	s := NewScanner()
	for i, b := range buf {
		if frame, ok := s.Next(); ok {
			t.Fatalf("Got frame %v before byte %d arrived", frame, i)
		}
		s.Write([]byte{b})
	}

	frame, ok := s.Next()
	if !ok {
		t.Fatal("Expected a frame after the last byte")
	}
	if !bytes.Equal(frame.Payload, []byte{9, 8, 7, 6}) {
		t.Errorf("Expected payload [9 8 7 6], got %v", frame.Payload)
	}
}

func TestScannerMultipleFrames(t *testing.T) {
	var stream []byte
	var err error
	for i := 0; i < 5; i++ {
		stream, err = AppendFrame(stream, MsgFire, []byte{byte(i)})
		if err != nil {
			t.Fatalf("AppendFrame failed: %v", err)
		}
	}

	s := NewScanner()
	s.Write(stream)
	for i := 0; i < 5; i++ {
		frame, ok := s.Next()
		if !ok {
			t.Fatalf("Expected frame %d", i)
		}
		if frame.Payload[0] != byte(i) {
			t.Errorf("Frame %d: expected payload %d, got %d", i, i, frame.Payload[0])
		}
	}
	if _, ok := s.Next(); ok {
		t.Error("Expected the stream to be drained")
	}
}

func TestScannerResyncAfterGarbage(t *testing.T) {
	frameA, err := AppendFrame(nil, MsgFire, []byte{0x0A})
	if err != nil {
		t.Fatalf("AppendFrame failed: %v", err)
	}
	frameB, err := AppendFrame(nil, MsgFire, []byte{0x0B})
	if err != nil {
		t.Fatalf("AppendFrame failed: %v", err)
	}

	// Garbage with an explicit sync terminator, then two clean frames:
	// the scanner should drop the garbage and keep both frames.
	var stream []byte
	stream = append(stream, 0xDE, 0xAD, 0xBE, FrameSync)
	stream = append(stream, frameA...)
	stream = append(stream, frameB...)

	s := NewScanner()
	s.Write(stream)

	got := 0
	for {
		frame, ok := s.Next()
		if !ok {
			break
		}
		got++
		if frame.Type != MsgFire {
			t.Errorf("Expected MsgFire, got %#x", frame.Type)
		}
	}
	if got != 2 {
		t.Errorf("Expected 2 frames after resync, got %d", got)
	}
	if s.Resyncs() == 0 {
		t.Error("Expected at least one resync")
	}
}

func TestScannerGarbageWithoutSyncLosesNextFrame(t *testing.T) {
	frameA, err := AppendFrame(nil, MsgFire, []byte{0x0A})
	if err != nil {
		t.Fatalf("AppendFrame failed: %v", err)
	}
	frameB, err := AppendFrame(nil, MsgFire, []byte{0x0B})
	if err != nil {
		t.Fatalf("AppendFrame failed: %v", err)
	}

	// Without a sync byte in the garbage, the hunt consumes up to the
	// end of frame A; only frame B survives. Loss, not corruption.
	var stream []byte
	stream = append(stream, 0xDE, 0xAD)
	stream = append(stream, frameA...)
	stream = append(stream, frameB...)

	s := NewScanner()
	s.Write(stream)

	frame, ok := s.Next()
	if !ok {
		t.Fatal("Expected one surviving frame")
	}
	if frame.Payload[0] != 0x0B {
		t.Errorf("Expected frame B to survive, got payload %v", frame.Payload)
	}
	if _, ok := s.Next(); ok {
		t.Error("Expected no further frames")
	}
}

func TestScannerCRCError(t *testing.T) {
	good, err := AppendFrame(nil, MsgStats, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("AppendFrame failed: %v", err)
	}
	bad := append([]byte(nil), good...)
	bad[3] ^= 0xFF // corrupt a payload byte

	s := NewScanner()
	s.Write(bad)
	s.Write(good)

	frame, ok := s.Next()
	if !ok {
		t.Fatal("Expected the good frame to survive")
	}
	if !bytes.Equal(frame.Payload, []byte{1, 2, 3}) {
		t.Errorf("Expected payload [1 2 3], got %v", frame.Payload)
	}
	if s.CRCErrors() != 1 {
		t.Errorf("Expected 1 CRC error, got %d", s.CRCErrors())
	}
}

func TestScannerIdleSyncBytes(t *testing.T) {
	frame, err := AppendFrame(nil, MsgMark, []byte{0x42})
	if err != nil {
		t.Fatalf("AppendFrame failed: %v", err)
	}

	var stream []byte
	stream = append(stream, FrameSync, FrameSync)
	stream = append(stream, frame...)
	stream = append(stream, FrameSync)

	s := NewScanner()
	s.Write(stream)
	decoded, ok := s.Next()
	if !ok {
		t.Fatal("Expected a frame between idle sync bytes")
	}
	if decoded.Payload[0] != 0x42 {
		t.Errorf("Expected payload 0x42, got %v", decoded.Payload)
	}
	if _, ok := s.Next(); ok {
		t.Error("Expected no further frames")
	}
}

func TestScannerPayloadIsStable(t *testing.T) {
	frameA, err := AppendFrame(nil, MsgFire, []byte{0x0A})
	if err != nil {
		t.Fatalf("AppendFrame failed: %v", err)
	}
	frameB, err := AppendFrame(nil, MsgFire, []byte{0x0B})
	if err != nil {
		t.Fatalf("AppendFrame failed: %v", err)
	}

	s := NewScanner()
	s.Write(frameA)
	first, ok := s.Next()
	if !ok {
		t.Fatal("Expected frame A")
	}
	s.Write(frameB)
	if _, ok := s.Next(); !ok {
		t.Fatal("Expected frame B")
	}

	// Frame A's payload must not be clobbered by later scanner work.
	if first.Payload[0] != 0x0A {
		t.Errorf("Expected stable payload 0x0A, got %#x", first.Payload[0])
	}
}
