//go:build rp2040 || rp2350

package main

import (
	"runtime/volatile"
	"unsafe"

	"jiffy/core"
)

// RP2040/RP2350 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08 // Raw timer high word
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// hardwareUptime reads the full 64-bit 1MHz hardware counter. High and
// low words are separate registers, so high is read on both sides of
// low to catch a rollover mid-read.
func hardwareUptime() uint64 {
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()

		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
		// Rollover happened during the read; retry
	}
}

// hardwareTicks converts the hardware clock to wheel ticks. Derived
// from the 64-bit counter so the tick count wraps on the 32-bit tick
// period, not on the much shorter 32-bit microsecond period.
func hardwareTicks() core.Ticks {
	return core.Ticks(hardwareUptime() / (1000000 / core.TickHz))
}
