package core

// TrampolineFunc is the expiry entry point a subsystem stores per record.
// The subsystem calls it with the bare record pointer; the function must
// not block for long and must not panic across the call boundary.
type TrampolineFunc func(*TimerRecord)

// TimerFlags select subsystem behavior for one record. Flags are fixed
// at init time.
type TimerFlags uint8

const (
	// TimerPinned asks the subsystem to keep expiry on the tick source
	// that armed the timer. The built-in wheel runs a single dispatch
	// queue, so the flag is recorded but changes nothing there.
	TimerPinned TimerFlags = 1 << iota

	// TimerDeferrable marks a timer that may fire late: it does not
	// shorten the sleep a dyntick target programs from NextWake.
	TimerDeferrable

	// TimerIRQSafe runs the expiry function with interrupts masked.
	TimerIRQSafe
)

// Record states, guarded by the owning subsystem's lock.
const (
	recIdle uint8 = iota
	recPending
	recDead
)

// noCopy makes `go vet` flag any value copy of the containing struct.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// TimerRecord is the per-timer block a subsystem links into its pending
// queue. It is embedded in a Timer and handed around by bare pointer;
// its address must not change between InitTimer and shutdown. Callers
// never touch its fields, only pass the pointer back to the subsystem.
type TimerRecord struct {
	noCopy noCopy

	next  *TimerRecord
	fn    TrampolineFunc
	sub   TimerSubsystem
	wake  Ticks
	flags TimerFlags
	state uint8
	token uint8
	name  string
}

// Pending reports whether the record is currently queued for expiry.
// The answer is advisory: it can be stale by the time the caller acts
// on it.
func (r *TimerRecord) Pending() bool {
	return r != nil && r.state == recPending
}

// Token returns the telemetry identity assigned at init.
func (r *TimerRecord) Token() uint8 {
	if r == nil {
		return 0
	}
	return r.token
}

// Name returns the debug name assigned at init.
func (r *TimerRecord) Name() string {
	if r == nil {
		return ""
	}
	return r.name
}
