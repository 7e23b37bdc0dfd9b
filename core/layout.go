package core

import "unsafe"

// timerHead is the fixed, non-generic prefix of every Timer. Keeping
// the record inside a concrete struct pins its offset to a compile-time
// constant that does not depend on the callback type parameter, which
// is what lets one offset serve every Timer instantiation.
type timerHead struct {
	closed uint32
	pin    pinRef
	record TimerRecord
}

// recordOffset is the byte distance from a Timer's base address to its
// embedded record. Timer declares head as its first field, so the base
// of the head is the base of the Timer and this one constant covers the
// whole chain. If a refactor ever breaks that chain the checks below
// and the tests fail, not the pointer math at run time.
const recordOffset = unsafe.Offsetof(timerHead{}.record)

// Constant arithmetic on uintptr rejects negative results, so this
// refuses to compile if the record ever escapes the head's bounds.
const _ = unsafe.Sizeof(timerHead{}) - recordOffset - unsafe.Sizeof(TimerRecord{})

// ownerOf recovers the base address of the Timer that embeds rec.
//
// Only records placed by NewTimer may be passed in: rec and the result
// then lie in the same allocation, so stepping back by recordOffset
// stays in bounds, which is the condition the unsafe rules require.
func ownerOf(rec *TimerRecord) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(rec), -int(recordOffset))
}
