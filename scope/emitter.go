// Package scope streams timer activity off the device as framed
// telemetry. An Emitter taps the core trace hook, hands fire events to
// a drain goroutine over a fixed-size channel and never blocks the
// dispatch path: when the channel is full the event is dropped and
// counted. A Reporter timer on the observed subsystem queues periodic
// dictionary and stats refreshes, so a reader that attaches mid-stream
// still converges on complete state.
package scope

import (
	"io"
	"sync"
	"sync/atomic"

	"jiffy/core"
	"jiffy/protocol"
)

const (
	eventBacklog   = 64 // fire events buffered between hook and drain
	requestBacklog = 8  // queued dict/stats/mark requests
	dictNameMax    = 32 // longer names are truncated to fit one frame
	markTextMax    = 48
)

// TimerInfo is the view of a pinned timer the dictionary needs. Every
// core.Timer instantiation satisfies it.
type TimerInfo interface {
	Token() uint8
	Name() string
	Flags() core.TimerFlags
}

type dictRow struct {
	token uint8
	flags uint8
	name  string
}

type reqKind uint8

const (
	reqDict reqKind = iota + 1
	reqStats
	reqMark
)

type request struct {
	kind reqKind
	tick core.Ticks
	text string
}

// Emitter turns timer events into protocol frames on w. Only one
// emitter can be active at a time: the trace hook it installs is
// global. Start it before the wheel's clock runs and stop it after the
// wheel quiesces.
type Emitter struct {
	w   io.Writer
	sub core.TimerSubsystem

	events   chan core.TimerEvent
	requests chan request
	done     chan struct{}
	stopOnce sync.Once

	// Dictionary rows. Registration may happen on any goroutine;
	// emission snapshots under the same lock.
	mu    sync.Mutex
	rows  []dictRow
	known [256]bool

	// Owned by the drain goroutine.
	scratch  []byte
	fires    [256]uint32
	late     [256]uint32
	lastTick [256]uint32

	seen      uint32 // fire events accepted onto the channel
	dropped   uint32 // fire events lost to a full channel
	writeErrs uint32
}

// NewEmitter builds an emitter writing frames to w, stamping request
// times from sub. Call Start to begin streaming.
func NewEmitter(w io.Writer, sub core.TimerSubsystem) *Emitter {
	return &Emitter{
		w:        w,
		sub:      sub,
		events:   make(chan core.TimerEvent, eventBacklog),
		requests: make(chan request, requestBacklog),
		done:     make(chan struct{}),
		scratch:  make([]byte, 0, protocol.FrameLengthMax),
	}
}

// Start installs the trace hook and starts the drain goroutine. Call
// once.
func (e *Emitter) Start() {
	core.SetTraceHook(e.capture)
	go e.drain()
}

// Stop removes the trace hook and ends the drain goroutine. Events
// still buffered are discarded; the stream is lossy by contract.
// Idempotent.
func (e *Emitter) Stop() {
	e.stopOnce.Do(func() {
		core.SetTraceHook(nil)
		close(e.done)
	})
}

// Register adds a pinned timer to the dictionary, replacing any earlier
// row with the same token. Token protocol.TokenEmitter is reserved for
// the emitter's own stats row.
func (e *Emitter) Register(t TimerInfo) {
	e.RegisterEntry(t.Token(), t.Flags(), t.Name())
}

// RegisterEntry adds a dictionary row for a timer the emitter only
// knows by token, such as a bare subsystem record.
func (e *Emitter) RegisterEntry(token uint8, flags core.TimerFlags, name string) {
	if len(name) > dictNameMax {
		name = name[:dictNameMax]
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rows {
		if e.rows[i].token == token {
			e.rows[i] = dictRow{token, uint8(flags), name}
			return
		}
	}
	e.rows = append(e.rows, dictRow{token, uint8(flags), name})
	e.known[token] = true
}

// EmitDict queues one dictionary frame per registered timer.
func (e *Emitter) EmitDict() {
	e.request(request{kind: reqDict})
}

// EmitStats queues a stats batch: one frame per known or fired token
// plus the emitter's own row.
func (e *Emitter) EmitStats() {
	e.request(request{kind: reqStats, tick: e.sub.Now()})
}

// Mark queues a free-text annotation stamped with the current tick.
// Text past one frame's worth is truncated.
func (e *Emitter) Mark(text string) {
	if len(text) > markTextMax {
		text = text[:markTextMax]
	}
	e.request(request{kind: reqMark, tick: e.sub.Now(), text: text})
}

// request is non-blocking. Requests are periodic and idempotent, so a
// full queue just means the next period covers it.
func (e *Emitter) request(r request) {
	select {
	case e.requests <- r:
	default:
	}
}

// Seen returns the fire events accepted so far.
func (e *Emitter) Seen() uint32 {
	return atomic.LoadUint32(&e.seen)
}

// Dropped returns the fire events lost to backpressure.
func (e *Emitter) Dropped() uint32 {
	return atomic.LoadUint32(&e.dropped)
}

// WriteErrors returns the frames the underlying writer rejected.
func (e *Emitter) WriteErrors() uint32 {
	return atomic.LoadUint32(&e.writeErrs)
}

// capture is the trace hook. It runs under the subsystem lock, so it
// only forwards fire events onto the buffered channel and returns.
func (e *Emitter) capture(ev core.TimerEvent) {
	if ev.Kind != core.EvtTimerFire {
		return
	}
	select {
	case e.events <- ev:
		atomic.AddUint32(&e.seen, 1)
	default:
		atomic.AddUint32(&e.dropped, 1)
	}
}

func (e *Emitter) drain() {
	for {
		select {
		case ev := <-e.events:
			e.handleFire(ev)
		case r := <-e.requests:
			switch r.kind {
			case reqDict:
				e.writeDict()
			case reqStats:
				e.writeStats(r.tick)
			case reqMark:
				e.writeMark(r.tick, r.text)
			}
		case <-e.done:
			return
		}
	}
}

// handleFire folds one fire event into the per-token aggregates and
// streams it. Arg carries the armed deadline; firing past it counts as
// late, firing exactly on it does not.
func (e *Emitter) handleFire(ev core.TimerEvent) {
	tok := ev.Token
	e.fires[tok]++
	e.lastTick[tok] = uint32(ev.Tick)
	if core.TicksBefore(core.Ticks(ev.Arg), ev.Tick) {
		e.late[tok]++
	}

	buf, err := protocol.AppendFireFrame(e.scratch[:0], protocol.FireReport{
		Token: tok,
		Tick:  uint32(ev.Tick),
		Wake:  ev.Arg,
	})
	if err != nil {
		return
	}
	e.scratch = buf
	e.write(buf)
}

func (e *Emitter) writeDict() {
	e.mu.Lock()
	rows := append([]dictRow(nil), e.rows...)
	e.mu.Unlock()

	for _, row := range rows {
		buf, err := protocol.AppendDictFrame(e.scratch[:0], protocol.DictEntry{
			TickHz: core.TickHz,
			Token:  row.token,
			Flags:  row.flags,
			Name:   row.name,
		})
		if err != nil {
			continue
		}
		e.scratch = buf
		e.write(buf)
	}
}

func (e *Emitter) writeStats(tick core.Ticks) {
	e.mu.Lock()
	rows := append([]dictRow(nil), e.rows...)
	known := e.known
	e.mu.Unlock()

	for _, row := range rows {
		e.writeStatsRow(row.token)
	}
	// Bare records fire without ever registering; report them too.
	for tok := 0; tok < len(e.fires); tok++ {
		if e.fires[tok] != 0 && !known[tok] {
			e.writeStatsRow(uint8(tok))
		}
	}

	buf, err := protocol.AppendStatsFrame(e.scratch[:0], protocol.StatsReport{
		Token:    protocol.TokenEmitter,
		Fires:    atomic.LoadUint32(&e.seen),
		Late:     atomic.LoadUint32(&e.dropped),
		LastTick: uint32(tick),
	})
	if err != nil {
		return
	}
	e.scratch = buf
	e.write(buf)
}

func (e *Emitter) writeStatsRow(tok uint8) {
	buf, err := protocol.AppendStatsFrame(e.scratch[:0], protocol.StatsReport{
		Token:    tok,
		Fires:    e.fires[tok],
		Late:     e.late[tok],
		LastTick: e.lastTick[tok],
	})
	if err != nil {
		return
	}
	e.scratch = buf
	e.write(buf)
}

func (e *Emitter) writeMark(tick core.Ticks, text string) {
	buf, err := protocol.AppendMarkFrame(e.scratch[:0], protocol.MarkReport{
		Tick: uint32(tick),
		Text: text,
	})
	if err != nil {
		return
	}
	e.scratch = buf
	e.write(buf)
}

func (e *Emitter) write(buf []byte) {
	if _, err := e.w.Write(buf); err != nil {
		atomic.AddUint32(&e.writeErrs, 1)
	}
}
