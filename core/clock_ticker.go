//go:build !linux && !tinygo

package core

import (
	"sync"
	"time"
)

// StartClock drives w at TickHz from a time.Ticker. Tickers drop
// intervals under load, so the tick count is recomputed from wall
// elapsed time on every delivery rather than counted per delivery.
//
// The returned stop halts the clock; pending timers are left alone.
// Stop is idempotent.
func StartClock(w *TimerWheel) (stop func(), err error) {
	interval := time.Second / TickHz
	tk := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		start := time.Now()
		var advanced uint64
		for {
			select {
			case <-done:
				return
			case <-tk.C:
				total := uint64(time.Since(start) / interval)
				if d := total - advanced; d > 0 {
					advanced = total
					w.Tick(uint32(d))
				}
			}
		}
	}()

	var once sync.Once
	stop = func() {
		once.Do(func() {
			tk.Stop()
			close(done)
		})
	}
	return stop, nil
}
