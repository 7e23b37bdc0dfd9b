package core

import "sync/atomic"

// TimerCallback is the state an expiring Timer runs. Expire receives
// the timer's own record so it can rearm through ModifyTimer without
// holding a reference to the Timer or the subsystem.
type TimerCallback interface {
	Expire(rec *TimerRecord)
}

// TimerFunc adapts a plain function to TimerCallback for timers that
// carry no state of their own.
type TimerFunc func(*TimerRecord)

func (f TimerFunc) Expire(rec *TimerRecord) { f(rec) }

// Timer couples one callback value with one subsystem record in a
// single pinned allocation. The subsystem only ever sees the record
// pointer; the trampoline recovers the Timer from it by fixed offset,
// which is why the allocation must not move and why head must stay the
// first field.
//
// A Timer is built with NewTimer, used through its methods, and ended
// with Close. Copying one is a bug; `go vet` flags it.
type Timer[C TimerCallback] struct {
	head     timerHead
	callback C
}

// trampoline is the expiry entry registered for every Timer of callback
// type C. The subsystem calls it with the bare record pointer; stepping
// back recordOffset bytes lands on the owning Timer. Each C gets its
// own instantiation, so the record's function pointer alone selects the
// right callback type.
func trampoline[C TimerCallback](rec *TimerRecord) {
	t := (*Timer[C])(ownerOf(rec))
	t.callback.Expire(rec)
}

// NewTimer allocates a Timer around callback, pins the allocation, and
// binds the embedded record to sub. name shows up in debug output and
// token identifies the timer in telemetry; both are fixed for the
// timer's lifetime, as is the callback value. The timer starts idle.
func NewTimer[C TimerCallback](sub TimerSubsystem, name string, token uint8, callback C, flags TimerFlags) (*Timer[C], error) {
	if sub == nil {
		return nil, ErrNoSubsystem
	}

	t := &Timer[C]{callback: callback}
	t.head.pin.pin(t)
	if err := sub.InitTimer(&t.head.record, trampoline[C], flags, name, token); err != nil {
		t.head.pin.unpin()
		return nil, err
	}
	return t, nil
}

// Arm schedules the timer to expire at wake, replacing any earlier
// deadline. It reports whether the timer was already pending. Arming
// a closed timer fails with ErrTimerShutdown.
func (t *Timer[C]) Arm(wake Ticks) (bool, error) {
	return ModifyTimer(&t.head.record, wake)
}

// Cancel deactivates the timer and waits for an in-flight expiry to
// finish, so on return the callback is not running and will not run
// until the next Arm. Safe to call repeatedly or on a never-armed
// timer; must not be called from the timer's own expiry function.
func (t *Timer[C]) Cancel() {
	CancelTimer(&t.head.record)
}

// Record exposes the embedded record for handing to subsystem-level
// helpers. The pointer stays valid until Close; callers must not
// retain it past that.
func (t *Timer[C]) Record() *TimerRecord {
	return &t.head.record
}

// Name returns the debug name given to NewTimer.
func (t *Timer[C]) Name() string {
	return t.head.record.name
}

// Token returns the telemetry token given to NewTimer.
func (t *Timer[C]) Token() uint8 {
	return t.head.record.token
}

// Flags returns the flags the timer was built with.
func (t *Timer[C]) Flags() TimerFlags {
	return t.head.record.flags
}

// Close cancels the timer, retires its record and releases the pin.
// The cancel is synchronous: on return no expiry of this timer is
// running, none is queued, and every later Arm fails. Close is
// idempotent. Like Cancel it must not be called from the timer's own
// expiry function.
func (t *Timer[C]) Close() {
	if !atomic.CompareAndSwapUint32(&t.head.closed, 0, 1) {
		return
	}
	ShutdownTimer(&t.head.record)
	t.head.pin.unpin()
}
