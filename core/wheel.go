package core

import "sync/atomic"

// TimerWheel is the built-in TimerSubsystem: a tick-driven expiry queue
// kept as a singly-linked list sorted by wake time, FIFO among equal
// deadlines. A clock driver advances it with Tick or AdvanceTo; arm and
// cancel may be called from any goroutine and from expiry functions.
//
// Exactly one clock driver may advance a wheel. Expiry functions run
// with the wheel unlocked, so they may rearm their own record; they
// must not call CancelTimer on it, which on hosts would wait for the
// very function that is calling.
type TimerWheel struct {
	lk      wheelLock
	pending *TimerRecord // sorted queue head
	running *TimerRecord // record whose expiry function is in flight
	now     uint32       // current tick, read atomically
}

// NewTimerWheel returns a wheel whose clock starts at start. Passing a
// value near the 32-bit wrap point is fine; all deadline math is
// wrap-safe.
func NewTimerWheel(start Ticks) *TimerWheel {
	w := &TimerWheel{}
	w.lk.init()
	atomic.StoreUint32(&w.now, uint32(start))
	return w
}

// Now returns the wheel's current tick.
func (w *TimerWheel) Now() Ticks {
	return Ticks(atomic.LoadUint32(&w.now))
}

// InitTimer binds rec to the wheel. See TimerSubsystem.
func (w *TimerWheel) InitTimer(rec *TimerRecord, fn TrampolineFunc, flags TimerFlags, name string, token uint8) error {
	if rec == nil {
		return ErrNilRecord
	}
	if fn == nil {
		return ErrNilTrampoline
	}

	state := w.lk.lock()
	defer w.lk.unlock(state)

	if rec.sub != nil {
		return ErrRecordBound
	}
	rec.fn = fn
	rec.flags = flags
	rec.name = name
	rec.token = token
	rec.state = recIdle
	rec.next = nil
	rec.sub = w
	recordTimerEvent(EvtTimerInit, token, w.Now(), 0)
	return nil
}

// ModifyTimer (re)arms rec to expire at wake. See TimerSubsystem.
func (w *TimerWheel) ModifyTimer(rec *TimerRecord, wake Ticks) (bool, error) {
	if rec == nil {
		return false, ErrNilRecord
	}

	state := w.lk.lock()
	defer w.lk.unlock(state)

	if rec.sub == nil {
		return false, ErrRecordUnbound
	}
	if rec.sub != TimerSubsystem(w) {
		return false, ErrForeignRecord
	}
	if rec.state == recDead {
		return false, ErrTimerShutdown
	}

	prev := rec.state == recPending
	if prev {
		w.unlink(rec)
	}
	rec.wake = wake
	w.insert(rec)
	recordTimerEvent(EvtTimerArm, rec.token, w.Now(), uint32(wake))
	return prev, nil
}

// CancelTimer removes rec from the queue and waits out any in-flight
// expiry of it. See TimerSubsystem.
func (w *TimerWheel) CancelTimer(rec *TimerRecord) {
	if rec == nil || rec.sub == nil {
		return
	}

	state := w.lk.lock()
	w.cancelLocked(rec)
	w.lk.unlock(state)
}

// ShutdownTimer cancels rec and retires it for good. See TimerSubsystem.
func (w *TimerWheel) ShutdownTimer(rec *TimerRecord) {
	if rec == nil || rec.sub == nil {
		return
	}

	state := w.lk.lock()
	w.cancelLocked(rec)
	if rec.state != recDead {
		rec.state = recDead
		recordTimerEvent(EvtTimerShutdown, rec.token, w.Now(), 0)
	}
	w.lk.unlock(state)
}

// cancelLocked is the shared deactivate-and-wait loop. The expiry
// function may rearm between wakeups, so the unlink is retried each
// pass until the record is neither queued nor in flight.
func (w *TimerWheel) cancelLocked(rec *TimerRecord) {
	canceled := false
	for {
		if rec.state == recPending {
			w.unlink(rec)
			canceled = true
		}
		if w.running != rec || !w.lk.canWait() {
			break
		}
		w.lk.waitExpiry()
	}
	if canceled {
		recordTimerEvent(EvtTimerCancel, rec.token, w.Now(), uint32(rec.wake))
	}
}

// Tick advances the clock by n ticks and dispatches everything that
// came due. Clock drivers call this once per tick batch.
func (w *TimerWheel) Tick(n uint32) {
	now := Ticks(atomic.AddUint32(&w.now, n))
	w.dispatch(now)
}

// AdvanceTo sets the clock to t and dispatches everything that came
// due. t must be at or after Now in wrap order; targets use this with
// a hardware counter instead of counting interrupts.
func (w *TimerWheel) AdvanceTo(t Ticks) {
	atomic.StoreUint32(&w.now, uint32(t))
	w.dispatch(t)
}

// dispatch pops and invokes every record with wake <= now. Each record
// is unlinked before its expiry function runs, so one deadline produces
// exactly one invocation; a record seen rearming itself was armed anew
// by its own expiry function.
func (w *TimerWheel) dispatch(now Ticks) {
	state := w.lk.lock()
	for w.pending != nil && TicksAtOrAfter(now, w.pending.wake) {
		rec := w.pending
		w.pending = rec.next
		rec.next = nil
		rec.state = recIdle
		w.running = rec
		recordTimerEvent(EvtTimerFire, rec.token, now, uint32(rec.wake))

		// Invoke with the wheel unlocked so the expiry function can
		// rearm. IRQ-safe timers run under a masked section, which on
		// microcontrollers is the same exclusion the lock provides.
		irqSafe := rec.flags&TimerIRQSafe != 0
		w.lk.unlock(state)
		if irqSafe {
			s := maskIRQ()
			rec.fn(rec)
			unmaskIRQ(s)
		} else {
			rec.fn(rec)
		}
		state = w.lk.lock()

		w.running = nil
		w.lk.wakeExpiry()
	}
	w.lk.unlock(state)
}

// insert links rec into the sorted queue. Equal wake times go behind
// existing entries so timers armed first fire first.
func (w *TimerWheel) insert(rec *TimerRecord) {
	rec.state = recPending
	if w.pending == nil || TicksBefore(rec.wake, w.pending.wake) {
		rec.next = w.pending
		w.pending = rec
		return
	}

	current := w.pending
	for current.next != nil && !TicksBefore(rec.wake, current.next.wake) {
		current = current.next
	}

	rec.next = current.next
	current.next = rec
}

// unlink removes rec from the queue. Caller holds the lock and has
// checked that rec is pending.
func (w *TimerWheel) unlink(rec *TimerRecord) {
	if w.pending == rec {
		w.pending = rec.next
	} else {
		for current := w.pending; current != nil; current = current.next {
			if current.next == rec {
				current.next = rec.next
				break
			}
		}
	}
	rec.next = nil
	rec.state = recIdle
}

// NextWake returns the earliest pending deadline that is not
// deferrable, for targets that program a wakeup comparator before
// sleeping. ok is false when every pending timer is deferrable or the
// queue is empty.
func (w *TimerWheel) NextWake() (wake Ticks, ok bool) {
	state := w.lk.lock()
	defer w.lk.unlock(state)

	for rec := w.pending; rec != nil; rec = rec.next {
		if rec.flags&TimerDeferrable == 0 {
			return rec.wake, true
		}
	}
	return 0, false
}

// PendingLen counts queued records. Diagnostic only.
func (w *TimerWheel) PendingLen() int {
	state := w.lk.lock()
	defer w.lk.unlock(state)

	n := 0
	for rec := w.pending; rec != nil; rec = rec.next {
		n++
	}
	return n
}
