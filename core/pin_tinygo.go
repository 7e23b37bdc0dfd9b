//go:build tinygo

package core

// pinRef is empty on microcontrollers. The collector there neither
// moves objects nor frees anything a queued *TimerRecord still reaches,
// so a bound record's address is stable without explicit pinning.
type pinRef struct{}

func (r *pinRef) pin(v any) { _ = v }

func (r *pinRef) unpin() {}
