// Package tap is the host side of the telemetry link: it reads the
// framed stream a device emitter produces, keeps an aggregated per-timer
// table and republishes decoded reports for interactive consumers.
package tap

import (
	"io"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"jiffy/core"
	"jiffy/protocol"
)

const (
	readChunk   = 256 // serial read buffer size
	eventFanout = 256 // decoded reports buffered toward the consumer
	markHistory = 16  // annotations kept in the table
)

// TimerStat is the merged view of one timer token: identity from dict
// frames, device-side counters from stats frames, host-side counters
// from the fire frames actually seen (the stream is lossy, so the two
// can differ).
type TimerStat struct {
	Token uint8
	Name  string
	Flags uint8

	// Device-reported, from the latest stats frame.
	Fires    uint32
	Late     uint32
	LastTick uint32

	// Host-observed fire frames.
	SeenFires uint32
	SeenLate  uint32
	LastWake  uint32
}

// Table is a point-in-time copy of everything the reader knows.
type Table struct {
	Hz     uint32
	Timers []TimerStat // sorted by token
	Marks  []protocol.MarkReport

	Frames       uint32
	CRCErrors    uint32
	Resyncs      uint32
	DecodeErrors uint32
}

// Reader drains a telemetry byte stream on its own goroutine. Decoded
// reports update the table and are republished on Events as their
// protocol types, dropped when the consumer lags; the wireside never
// blocks on a slow display.
type Reader struct {
	src     io.Reader
	scanner *protocol.Scanner

	events   chan any
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu         sync.Mutex
	hz         uint32
	table      map[uint8]*TimerStat
	marks      []protocol.MarkReport
	frames     uint32
	crcErrs    uint32
	resyncs    uint32
	decodeErrs uint32
}

// NewReader wraps src, typically an open serial.Port or a file of
// captured bytes. Call Start to begin draining.
func NewReader(src io.Reader) *Reader {
	return &Reader{
		src:     src,
		scanner: protocol.NewScanner(),
		events:  make(chan any, eventFanout),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		table:   make(map[uint8]*TimerStat),
	}
}

// Start launches the read loop. Call once.
func (r *Reader) Start() {
	go r.loop()
}

// Stop asks the read loop to exit. A Read already in flight finishes
// first; close the underlying source to unblock it. Idempotent.
func (r *Reader) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}

// Done is closed when the read loop has exited, whether from Stop, EOF
// or a dead source.
func (r *Reader) Done() <-chan struct{} {
	return r.done
}

// Events carries each decoded report as its protocol type: DictEntry,
// FireReport, StatsReport or MarkReport. Consumers that fall behind
// miss events; Snapshot always has the current aggregate.
func (r *Reader) Events() <-chan any {
	return r.events
}

// Snapshot copies the aggregated table.
func (r *Reader) Snapshot() Table {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := Table{
		Hz:           r.hz,
		Timers:       make([]TimerStat, 0, len(r.table)),
		Marks:        append([]protocol.MarkReport(nil), r.marks...),
		Frames:       r.frames,
		CRCErrors:    r.crcErrs,
		Resyncs:      r.resyncs,
		DecodeErrors: r.decodeErrs,
	}
	for _, row := range r.table {
		t.Timers = append(t.Timers, *row)
	}
	sort.Slice(t.Timers, func(i, j int) bool { return t.Timers[i].Token < t.Timers[j].Token })
	return t
}

func (r *Reader) loop() {
	defer close(r.done)

	buf := make([]byte, readChunk)
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		n, err := r.src.Read(buf)
		if n > 0 {
			r.scanner.Write(buf[:n])
			r.pump()
		}
		if err != nil {
			if err == io.EOF {
				Logger().Info("telemetry source closed")
				return
			}
			Logger().Warn("telemetry read failed", zap.Error(err))
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// pump drains completed frames from the scanner and refreshes the
// stream counters.
func (r *Reader) pump() {
	for {
		frame, ok := r.scanner.Next()
		if !ok {
			break
		}
		r.dispatch(frame)
	}

	r.mu.Lock()
	r.frames = r.scanner.Frames()
	r.crcErrs = r.scanner.CRCErrors()
	r.resyncs = r.scanner.Resyncs()
	r.mu.Unlock()
}

func (r *Reader) dispatch(frame protocol.Frame) {
	switch frame.Type {
	case protocol.MsgDict:
		e, err := protocol.DecodeDict(frame.Payload)
		if err != nil {
			r.decodeFailed(frame.Type, err)
			return
		}
		r.mu.Lock()
		r.hz = e.TickHz
		row := r.row(e.Token)
		row.Name = e.Name
		row.Flags = e.Flags
		r.mu.Unlock()
		r.publish(e)

	case protocol.MsgFire:
		f, err := protocol.DecodeFire(frame.Payload)
		if err != nil {
			r.decodeFailed(frame.Type, err)
			return
		}
		r.mu.Lock()
		row := r.row(f.Token)
		row.SeenFires++
		row.LastTick = f.Tick
		row.LastWake = f.Wake
		if core.TicksBefore(core.Ticks(f.Wake), core.Ticks(f.Tick)) {
			row.SeenLate++
		}
		r.mu.Unlock()
		r.publish(f)

	case protocol.MsgStats:
		s, err := protocol.DecodeStats(frame.Payload)
		if err != nil {
			r.decodeFailed(frame.Type, err)
			return
		}
		r.mu.Lock()
		row := r.row(s.Token)
		row.Fires = s.Fires
		row.Late = s.Late
		row.LastTick = s.LastTick
		r.mu.Unlock()
		r.publish(s)

	case protocol.MsgMark:
		m, err := protocol.DecodeMark(frame.Payload)
		if err != nil {
			r.decodeFailed(frame.Type, err)
			return
		}
		r.mu.Lock()
		if len(r.marks) == markHistory {
			copy(r.marks, r.marks[1:])
			r.marks = r.marks[:markHistory-1]
		}
		r.marks = append(r.marks, m)
		r.mu.Unlock()
		r.publish(m)

	default:
		// Unknown frame types are legal: an older reader on a newer
		// device skips them.
		Logger().Debug("skipping unknown frame type", zap.Uint8("type", frame.Type))
	}
}

// row returns the stat row for token, creating it on first sight.
// Caller holds mu.
func (r *Reader) row(token uint8) *TimerStat {
	row, ok := r.table[token]
	if !ok {
		row = &TimerStat{Token: token}
		r.table[token] = row
	}
	return row
}

func (r *Reader) decodeFailed(frameType uint8, err error) {
	r.mu.Lock()
	r.decodeErrs++
	r.mu.Unlock()
	Logger().Debug("frame decode failed", zap.Uint8("type", frameType), zap.Error(err))
}

func (r *Reader) publish(msg any) {
	select {
	case r.events <- msg:
	default:
	}
}
