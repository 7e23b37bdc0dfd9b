//go:build !tinygo

package core

import "sync"

// irqState is the opaque token returned by maskIRQ. Unused on hosts.
type irqState uintptr

// maskIRQ and unmaskIRQ are no-ops on hosts; goroutine interleaving is
// controlled by wheelLock instead.
func maskIRQ() irqState    { return 0 }
func unmaskIRQ(s irqState) { _ = s }

// wheelLock guards a wheel's queue state on hosts, where arm, cancel
// and dispatch race from different goroutines. done is signalled each
// time an in-flight expiry function returns, which is what cancel
// waits on.
type wheelLock struct {
	mu   sync.Mutex
	done *sync.Cond
}

func (l *wheelLock) init() {
	l.done = sync.NewCond(&l.mu)
}

func (l *wheelLock) lock() irqState {
	l.mu.Lock()
	return 0
}

func (l *wheelLock) unlock(s irqState) {
	_ = s
	l.mu.Unlock()
}

// waitExpiry blocks until the next expiry-done broadcast. The caller
// must hold the lock; it is held again on return.
func (l *wheelLock) waitExpiry() {
	l.done.Wait()
}

// wakeExpiry wakes every canceller parked in waitExpiry.
func (l *wheelLock) wakeExpiry() {
	l.done.Broadcast()
}

// canWait reports whether waitExpiry is usable. On hosts it is; a
// cancel that finds the target's expiry in flight parks until it ends.
func (l *wheelLock) canWait() bool { return true }
