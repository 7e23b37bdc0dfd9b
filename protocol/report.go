package protocol

import "errors"

var (
	ErrVersionMismatch = errors.New("telemetry format version mismatch")
)

// TokenEmitter is the reserved token the telemetry emitter reports its
// own totals under; real timers must use tokens below it.
const TokenEmitter = 0xFF

// DictEntry announces one timer's identity. Firmware sends the full
// dictionary on attach and may repeat it; entries are idempotent on the
// host side, so late-joining readers pick the dictionary up from the
// next repeat.
type DictEntry struct {
	TickHz uint32
	Token  uint8
	Flags  uint8
	Name   string
}

// FireReport is one expiry: when it was due and when it actually ran.
type FireReport struct {
	Token uint8
	Tick  uint32 // tick at invocation
	Wake  uint32 // armed deadline
}

// StatsReport carries running totals for one timer. Under TokenEmitter
// the fields repurpose to the emitter itself: Fires is events seen,
// Late is events dropped on the outbound queue.
type StatsReport struct {
	Token    uint8
	Fires    uint32
	Late     uint32
	LastTick uint32
}

// MarkReport is a free-form annotation pinned to a tick.
type MarkReport struct {
	Tick uint32
	Text string
}

// AppendDictFrame appends a complete dictionary frame for e.
func AppendDictFrame(dst []byte, e DictEntry) ([]byte, error) {
	return appendFramed(dst, MsgDict, func(b []byte) []byte {
		b = append(b, Version)
		b = AppendVLQUint(b, e.TickHz)
		b = append(b, e.Token, e.Flags)
		return AppendVLQString(b, e.Name)
	})
}

// DecodeDict parses a MsgDict payload. Bytes past the known fields are
// ignored so newer firmware can extend the entry.
func DecodeDict(payload []byte) (DictEntry, error) {
	var e DictEntry
	if len(payload) < 1 {
		return e, ErrBufferTooSmall
	}
	if payload[0] != Version {
		return e, ErrVersionMismatch
	}
	payload = payload[1:]

	hz, err := DecodeVLQUint(&payload)
	if err != nil {
		return e, err
	}
	if len(payload) < 2 {
		return e, ErrBufferTooSmall
	}
	e.TickHz = hz
	e.Token = payload[0]
	e.Flags = payload[1]
	payload = payload[2:]

	e.Name, err = DecodeVLQString(&payload)
	if err != nil {
		return DictEntry{}, err
	}
	return e, nil
}

// AppendFireFrame appends a complete fire frame for r.
func AppendFireFrame(dst []byte, r FireReport) ([]byte, error) {
	return appendFramed(dst, MsgFire, func(b []byte) []byte {
		b = append(b, r.Token)
		b = AppendVLQUint(b, r.Tick)
		return AppendVLQUint(b, r.Wake)
	})
}

// DecodeFire parses a MsgFire payload.
func DecodeFire(payload []byte) (FireReport, error) {
	var r FireReport
	if len(payload) < 1 {
		return r, ErrBufferTooSmall
	}
	r.Token = payload[0]
	payload = payload[1:]

	var err error
	if r.Tick, err = DecodeVLQUint(&payload); err != nil {
		return FireReport{}, err
	}
	if r.Wake, err = DecodeVLQUint(&payload); err != nil {
		return FireReport{}, err
	}
	return r, nil
}

// AppendStatsFrame appends a complete stats frame for r.
func AppendStatsFrame(dst []byte, r StatsReport) ([]byte, error) {
	return appendFramed(dst, MsgStats, func(b []byte) []byte {
		b = append(b, r.Token)
		b = AppendVLQUint(b, r.Fires)
		b = AppendVLQUint(b, r.Late)
		return AppendVLQUint(b, r.LastTick)
	})
}

// DecodeStats parses a MsgStats payload.
func DecodeStats(payload []byte) (StatsReport, error) {
	var r StatsReport
	if len(payload) < 1 {
		return r, ErrBufferTooSmall
	}
	r.Token = payload[0]
	payload = payload[1:]

	var err error
	if r.Fires, err = DecodeVLQUint(&payload); err != nil {
		return StatsReport{}, err
	}
	if r.Late, err = DecodeVLQUint(&payload); err != nil {
		return StatsReport{}, err
	}
	if r.LastTick, err = DecodeVLQUint(&payload); err != nil {
		return StatsReport{}, err
	}
	return r, nil
}

// AppendMarkFrame appends a complete mark frame for m.
func AppendMarkFrame(dst []byte, m MarkReport) ([]byte, error) {
	return appendFramed(dst, MsgMark, func(b []byte) []byte {
		b = AppendVLQUint(b, m.Tick)
		return AppendVLQString(b, m.Text)
	})
}

// DecodeMark parses a MsgMark payload.
func DecodeMark(payload []byte) (MarkReport, error) {
	var m MarkReport
	var err error
	if m.Tick, err = DecodeVLQUint(&payload); err != nil {
		return MarkReport{}, err
	}
	if m.Text, err = DecodeVLQString(&payload); err != nil {
		return MarkReport{}, err
	}
	return m, nil
}
