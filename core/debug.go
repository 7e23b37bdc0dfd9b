package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimerEvent captures one timer lifecycle event for post-mortem analysis
// and live telemetry. Arg carries the wake deadline on arm and fire.
type TimerEvent struct {
	Kind  uint8 // Event kind code
	Token uint8 // Timer identity token
	Tick  Ticks // Subsystem tick at event
	Arg   uint32
}

// Event kind codes
const (
	EvtTimerInit     = 1 // record bound to a subsystem
	EvtTimerArm      = 2 // deadline set or replaced
	EvtTimerFire     = 3 // expiry function invoked
	EvtTimerCancel   = 4 // removed from pending queue
	EvtTimerShutdown = 5 // record retired
)

const (
	TraceRingSize = 64 // Keep last 64 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Timer trace ring buffer (non-blocking, for post-mortem)
	traceRing     [TraceRingSize]TimerEvent
	traceRingHead uint8
	traceEnabled  bool = true

	// traceHook taps every recorded event; installed by telemetry emitters
	traceHook func(TimerEvent)

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// SetTraceEnabled enables or disables timer event capture
// Useful for benchmarks where even ring stores would affect timing
func SetTraceEnabled(enabled bool) {
	traceEnabled = enabled
}

// SetTraceHook installs a tap that sees every recorded timer event.
// The hook runs under the owning subsystem's lock: it must return
// quickly and must not arm or cancel timers. Pass nil to remove.
func SetTraceHook(hook func(TimerEvent)) {
	traceHook = hook
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

// debugOutputWorker runs in background, drains debug channel
func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
// Blocks if debug is enabled (use DebugAsync for non-blocking)
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if channel is full (drops message)
func DebugAsync(msg string) {
	if debugChan != nil {
		select {
		case debugChan <- msg:
		default:
			// Channel full, drop message (non-blocking)
		}
	}
}

// recordTimerEvent captures a timer event in the trace ring. Callers
// hold their subsystem lock, which serializes ring and hook access.
func recordTimerEvent(kind, token uint8, tick Ticks, arg uint32) {
	if !traceEnabled {
		return
	}
	idx := traceRingHead
	ev := TimerEvent{Kind: kind, Token: token, Tick: tick, Arg: arg}
	traceRing[idx] = ev
	traceRingHead = (idx + 1) % TraceRingSize
	if traceHook != nil {
		traceHook(ev)
	}
}

// TimerTrace copies out the recorded events, oldest first. Meant for
// inspection from a quiesced state; empty slots are skipped.
func TimerTrace() []TimerEvent {
	out := make([]TimerEvent, 0, TraceRingSize)
	start := traceRingHead
	for i := uint8(0); i < TraceRingSize; i++ {
		evt := traceRing[(start+i)%TraceRingSize]
		if evt.Kind == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

// DumpTimerTrace outputs the trace ring buffer (call on shutdown/error)
// This should be called after stopping time-critical code
func DumpTimerTrace() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TRACE] === Timer Trace Dump ===")
	for _, evt := range TimerTrace() {
		debugPrintln("[TRACE] " + eventKindName(evt.Kind) +
			" tok=" + utoa(uint32(evt.Token)) +
			" tick=" + utoa(uint32(evt.Tick)) +
			" arg=" + utoa(evt.Arg))
	}
	debugPrintln("[TRACE] === End Dump ===")
}

// ClearTimerTrace clears the trace buffer
func ClearTimerTrace() {
	for i := range traceRing {
		traceRing[i] = TimerEvent{}
	}
	traceRingHead = 0
}

func eventKindName(kind uint8) string {
	switch kind {
	case EvtTimerInit:
		return "INIT"
	case EvtTimerArm:
		return "ARM"
	case EvtTimerFire:
		return "FIRE"
	case EvtTimerCancel:
		return "CANCEL"
	case EvtTimerShutdown:
		return "SHUTDOWN"
	}
	return "UNKNOWN(" + itoa(int(kind)) + ")"
}
