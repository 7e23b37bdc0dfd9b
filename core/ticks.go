package core

import "time"

// Ticks is an absolute position on a timer subsystem's tick counter.
// The counter is 32 bits wide and wraps; all comparisons must go through
// TicksBefore or TicksAtOrAfter so that deadlines near the wrap point
// still order correctly.
type Ticks uint32

// TickHz is the tick rate of the built-in clock drivers. Subsystems fed
// by hardware interrupts may run at other rates; the rate is reported in
// the telemetry dictionary so hosts can convert.
const TickHz = 1000

// TicksBefore reports whether a is strictly earlier than b in wrap-safe
// tick order. Valid when a and b are within 2^31 ticks of each other.
func TicksBefore(a, b Ticks) bool {
	return int32(a-b) < 0
}

// TicksAtOrAfter reports whether a is at or past b in wrap-safe order.
func TicksAtOrAfter(a, b Ticks) bool {
	return !TicksBefore(a, b)
}

// TicksFromMS converts a millisecond count to ticks at TickHz.
func TicksFromMS(ms uint32) Ticks {
	return Ticks(uint64(ms) * TickHz / 1000)
}

// TicksFromDuration converts a duration to ticks at TickHz, rounding
// down. Durations shorter than one tick become zero.
func TicksFromDuration(d time.Duration) Ticks {
	if d <= 0 {
		return 0
	}
	return Ticks(d / (time.Second / TickHz))
}

// DurationFromTicks converts a tick count to a duration at TickHz.
func DurationFromTicks(t Ticks) time.Duration {
	return time.Duration(t) * (time.Second / TickHz)
}
