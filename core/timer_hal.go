package core

// TimerSubsystem is the contract between a Timer and the machinery
// that expires it. The built-in implementation is TimerWheel; targets
// with a hardware comparator queue can supply their own.
//
// A record belongs to exactly one subsystem from InitTimer until
// ShutdownTimer. The subsystem stores the record's address, so the
// record must not move while bound.
type TimerSubsystem interface {
	// InitTimer binds a record to the subsystem. The record starts
	// idle. fn is the expiry entry point; name and token identify the
	// timer in debug and telemetry output. Re-initializing a bound
	// record is an error.
	InitTimer(rec *TimerRecord, fn TrampolineFunc, flags TimerFlags, name string, token uint8) error

	// ModifyTimer (re)arms the record to expire at wake, replacing any
	// earlier deadline. It reports whether the record was pending
	// beforehand. Arming a shut-down record fails with
	// ErrTimerShutdown.
	ModifyTimer(rec *TimerRecord, wake Ticks) (bool, error)

	// CancelTimer removes the record from the pending queue if queued
	// and then waits for any in-flight expiry of it to return. It is
	// idempotent and safe on a never-armed record.
	CancelTimer(rec *TimerRecord)

	// ShutdownTimer cancels like CancelTimer and then retires the
	// record: every later ModifyTimer on it fails. Used on the timer
	// teardown path.
	ShutdownTimer(rec *TimerRecord)

	// Now returns the subsystem's current tick.
	Now() Ticks
}

// ModifyTimer (re)arms rec on the subsystem it was initialized with.
// It exists so expiry functions, which only see the bare record, can
// rearm without holding a subsystem reference.
func ModifyTimer(rec *TimerRecord, wake Ticks) (bool, error) {
	if rec == nil {
		return false, ErrNilRecord
	}
	if rec.sub == nil {
		return false, ErrRecordUnbound
	}
	return rec.sub.ModifyTimer(rec, wake)
}

// CancelTimer cancels rec on the subsystem it was initialized with.
// Calling it on a nil or never-bound record is a no-op.
func CancelTimer(rec *TimerRecord) {
	if rec == nil || rec.sub == nil {
		return
	}
	rec.sub.CancelTimer(rec)
}

// ShutdownTimer retires rec on the subsystem it was initialized with.
// Calling it on a nil or never-bound record is a no-op.
func ShutdownTimer(rec *TimerRecord) {
	if rec == nil || rec.sub == nil {
		return
	}
	rec.sub.ShutdownTimer(rec)
}
