package core

import "errors"

var (
	// ErrNilRecord means a timer operation was handed a nil record.
	ErrNilRecord = errors.New("nil timer record")

	// ErrNilTrampoline means a record was initialized without an
	// expiry function.
	ErrNilTrampoline = errors.New("nil timer trampoline")

	// ErrNoSubsystem means a timer was constructed without a backing
	// subsystem.
	ErrNoSubsystem = errors.New("no timer subsystem")

	// ErrRecordBound means InitTimer was called on a record that is
	// already owned by a subsystem. Records are single-init.
	ErrRecordBound = errors.New("timer record already bound")

	// ErrRecordUnbound means an arm or cancel reached a record that
	// was never initialized.
	ErrRecordUnbound = errors.New("timer record not bound")

	// ErrForeignRecord means a record was passed to a subsystem other
	// than the one it was initialized with.
	ErrForeignRecord = errors.New("timer record bound to another subsystem")

	// ErrTimerShutdown means the timer was closed; a shut-down record
	// can never be armed again.
	ErrTimerShutdown = errors.New("timer has been shut down")
)
