//go:build tinygo

package core

import "runtime/interrupt"

// irqState is the saved interrupt state returned by maskIRQ.
type irqState = interrupt.State

func maskIRQ() irqState { return interrupt.Disable() }

func unmaskIRQ(s irqState) { interrupt.Restore(s) }

// wheelLock guards a wheel's queue state on microcontrollers by masking
// interrupts. The targets are uniprocessor: masking is mutual exclusion
// against the tick interrupt, and no expiry function can be in flight
// on another CPU, so cancel never has anything to wait for.
type wheelLock struct{}

func (l *wheelLock) init() {}

func (l *wheelLock) lock() irqState {
	return interrupt.Disable()
}

func (l *wheelLock) unlock(s irqState) {
	interrupt.Restore(s)
}

func (l *wheelLock) waitExpiry() {}

func (l *wheelLock) wakeExpiry() {}

// canWait reports whether waitExpiry is usable. With interrupts masked
// there is nothing to wait on and nothing that could signal.
func (l *wheelLock) canWait() bool { return false }
