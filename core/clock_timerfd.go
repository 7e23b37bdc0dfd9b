//go:build linux && !tinygo

package core

import (
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// StartClock drives w at TickHz from a timerfd. The kernel counts
// expirations while the reader is behind, and each read returns that
// count, so a stalled goroutine catches the wheel up in one Tick batch
// instead of losing time.
//
// The returned stop halts the clock; pending timers are left alone.
// Stop is idempotent.
func StartClock(w *TimerWheel) (stop func(), err error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC)
	if err != nil {
		return nil, err
	}

	ts := unix.NsecToTimespec((time.Second / TickHz).Nanoseconds())
	its := unix.ItimerSpec{Interval: ts, Value: ts}
	if err := unix.TimerfdSettime(fd, 0, &its, nil); err != nil {
		unix.Close(fd)
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		var expirations uint64
		buf := (*[8]byte)(unsafe.Pointer(&expirations))[:]
		for {
			n, err := unix.Read(fd, buf)
			if err == unix.EINTR {
				continue
			}
			if err != nil || n != 8 {
				return // fd closed by stop
			}
			select {
			case <-done:
				return
			default:
			}
			w.Tick(uint32(expirations))
		}
	}()

	var once sync.Once
	stop = func() {
		once.Do(func() {
			close(done)
			unix.Close(fd)
		})
	}
	return stop, nil
}
