//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"jiffy/core"
	"jiffy/scope"
)

const (
	heartbeatToken  = 1
	reporterToken   = 2
	heartbeatPeriod = core.TickHz / 2
)

var wheel *core.TimerWheel

// heartbeat blinks the board LED so a stalled wheel is visible from
// across the room.
type heartbeat struct {
	led machine.Pin
	on  bool
}

func (h *heartbeat) Expire(rec *core.TimerRecord) {
	h.on = !h.on
	h.led.Set(h.on)
	core.ModifyTimer(rec, wheel.Now()+heartbeatPeriod)
}

func main() {
	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	// Telemetry UART: TX=GPIO0, RX=GPIO1, 115200 baud. jiffyscope on
	// the other end decodes the stream.
	uart := machine.UART0
	err := uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO0,
		RX:       machine.GPIO1,
	})
	if err != nil {
		return
	}

	wheel = core.NewTimerWheel(hardwareTicks())
	emitter := scope.NewEmitter(uart, wheel)
	emitter.Start()

	hb, err := core.NewTimer(wheel, "heartbeat", heartbeatToken, &heartbeat{led: machine.LED}, core.TimerIRQSafe)
	if err != nil {
		return
	}
	emitter.Register(hb)
	if _, err := hb.Arm(wheel.Now() + heartbeatPeriod); err != nil {
		return
	}

	// The reporter streams the dictionary and per-timer stats on its
	// own deferrable timer.
	if _, err := scope.StartReporter(emitter, wheel, reporterToken, 0); err != nil {
		return
	}
	emitter.Mark("board up")

	// The hardware counter is the tick source: fold it into the wheel
	// on every pass. A long pass catches up in one dispatch batch.
	for {
		wheel.AdvanceTo(hardwareTicks())
		time.Sleep(200 * time.Microsecond)
	}
}
