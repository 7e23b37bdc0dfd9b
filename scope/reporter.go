package scope

import "jiffy/core"

// dictRefreshPeriods is how many stats periods pass between dictionary
// resends. Dictionary rows are idempotent, so resending them lets a
// reader that attached mid-stream catch up.
const dictRefreshPeriods = 8

// Reporter drives the periodic side of the telemetry stream from a
// deferrable timer on the observed subsystem itself. Each expiry queues
// a stats batch, every dictRefreshPeriods-th also refreshes the
// dictionary, then the timer rearms for one period later.
type Reporter struct {
	emitter *Emitter
	sub     core.TimerSubsystem
	period  core.Ticks
	count   uint8
	timer   *core.Timer[*Reporter]
}

// StartReporter registers a reporting timer with token on sub and arms
// it one period out. A zero period defaults to one second. The
// dictionary is emitted once right away so the stream starts decodable.
func StartReporter(e *Emitter, sub core.TimerSubsystem, token uint8, period core.Ticks) (*Reporter, error) {
	if period == 0 {
		period = core.TickHz
	}

	r := &Reporter{emitter: e, sub: sub, period: period}
	t, err := core.NewTimer(sub, "scope-report", token, r, core.TimerDeferrable)
	if err != nil {
		return nil, err
	}
	r.timer = t

	e.Register(t)
	e.EmitDict()
	if _, err := t.Arm(sub.Now() + period); err != nil {
		t.Close()
		return nil, err
	}
	return r, nil
}

// Expire queues the periodic reports and rearms. Expiries of one record
// never overlap, so count needs no lock.
func (r *Reporter) Expire(rec *core.TimerRecord) {
	r.count++
	if r.count >= dictRefreshPeriods {
		r.count = 0
		r.emitter.EmitDict()
	}
	r.emitter.EmitStats()

	// A failed rearm means Stop shut the timer down between the fire
	// and this call.
	core.ModifyTimer(rec, r.sub.Now()+r.period)
}

// Stop retires the reporting timer. On return no further reports are
// queued; anything already queued still drains through the emitter.
// Must not be called from an expiry function.
func (r *Reporter) Stop() {
	r.timer.Close()
}
