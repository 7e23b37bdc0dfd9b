//go:build !tinygo

package core

import "runtime"

// pinRef holds the owning Timer's allocation in place. The subsystem
// keeps bare *TimerRecord pointers in its queue; pinning guarantees the
// address they point at stays valid from construction to Close even if
// the caller drops its own reference.
type pinRef struct {
	p runtime.Pinner
}

func (r *pinRef) pin(v any) {
	r.p.Pin(v)
}

func (r *pinRef) unpin() {
	r.p.Unpin()
}
