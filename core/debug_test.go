package core

import (
	"strings"
	"testing"
)

func traceKinds(events []TimerEvent, token uint8) []uint8 {
	var kinds []uint8
	for _, ev := range events {
		if ev.Token == token {
			kinds = append(kinds, ev.Kind)
		}
	}
	return kinds
}

func TestTimerTraceLifecycle(t *testing.T) {
	ClearTimerTrace()
	SetTraceEnabled(true)

	w := NewTimerWheel(0)
	tm, err := NewTimer(w, "traced", 99, TimerFunc(func(*TimerRecord) {}), 0)
	if err != nil {
		t.Fatalf("NewTimer failed: %v", err)
	}
	if _, err := tm.Arm(5); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	w.Tick(5)
	tm.Close()

	kinds := traceKinds(TimerTrace(), 99)
	expected := []uint8{EvtTimerInit, EvtTimerArm, EvtTimerFire, EvtTimerShutdown}
	if len(kinds) != len(expected) {
		t.Fatalf("Expected %d events, got %d (%v)", len(expected), len(kinds), kinds)
	}
	for i, kind := range expected {
		if kinds[i] != kind {
			t.Errorf("Event %d: expected kind %d, got %d", i, kind, kinds[i])
		}
	}
}

func TestTimerTraceCancelEvent(t *testing.T) {
	ClearTimerTrace()
	SetTraceEnabled(true)

	w := NewTimerWheel(0)
	tm, err := NewTimer(w, "traced", 7, TimerFunc(func(*TimerRecord) {}), 0)
	if err != nil {
		t.Fatalf("NewTimer failed: %v", err)
	}
	if _, err := tm.Arm(5); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	tm.Cancel()
	// A cancel that hits nothing pending records nothing.
	tm.Cancel()
	tm.Close()

	kinds := traceKinds(TimerTrace(), 7)
	expected := []uint8{EvtTimerInit, EvtTimerArm, EvtTimerCancel, EvtTimerShutdown}
	if len(kinds) != len(expected) {
		t.Fatalf("Expected %d events, got %d (%v)", len(expected), len(kinds), kinds)
	}
	for i, kind := range expected {
		if kinds[i] != kind {
			t.Errorf("Event %d: expected kind %d, got %d", i, kind, kinds[i])
		}
	}
}

func TestTraceHook(t *testing.T) {
	ClearTimerTrace()
	SetTraceEnabled(true)
	var tapped []TimerEvent
	SetTraceHook(func(ev TimerEvent) {
		tapped = append(tapped, ev)
	})
	defer SetTraceHook(nil)

	w := NewTimerWheel(100)
	tm, err := NewTimer(w, "tapped", 5, TimerFunc(func(*TimerRecord) {}), 0)
	if err != nil {
		t.Fatalf("NewTimer failed: %v", err)
	}
	if _, err := tm.Arm(110); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	w.Tick(10)
	tm.Close()

	kinds := traceKinds(tapped, 5)
	expected := []uint8{EvtTimerInit, EvtTimerArm, EvtTimerFire, EvtTimerShutdown}
	if len(kinds) != len(expected) {
		t.Fatalf("Expected the hook to see %d events, got %d", len(expected), len(kinds))
	}
	for _, ev := range tapped {
		if ev.Kind == EvtTimerFire && ev.Token == 5 {
			if ev.Tick != 110 || ev.Arg != 110 {
				t.Errorf("Fire event: expected tick=110 arg=110, got tick=%d arg=%d", ev.Tick, ev.Arg)
			}
		}
	}
}

func TestTraceDisabled(t *testing.T) {
	ClearTimerTrace()
	SetTraceEnabled(false)
	defer SetTraceEnabled(true)

	w := NewTimerWheel(0)
	tm, err := NewTimer(w, "quiet", 3, TimerFunc(func(*TimerRecord) {}), 0)
	if err != nil {
		t.Fatalf("NewTimer failed: %v", err)
	}
	if _, err := tm.Arm(5); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	w.Tick(5)
	tm.Close()

	if got := len(TimerTrace()); got != 0 {
		t.Errorf("Expected no events while disabled, got %d", got)
	}
}

func TestDumpTimerTrace(t *testing.T) {
	ClearTimerTrace()
	SetTraceEnabled(true)

	var lines []string
	SetDebugWriter(func(s string) {
		lines = append(lines, s)
	})
	defer SetDebugWriter(func(string) {})

	w := NewTimerWheel(0)
	tm, err := NewTimer(w, "dumped", 11, TimerFunc(func(*TimerRecord) {}), 0)
	if err != nil {
		t.Fatalf("NewTimer failed: %v", err)
	}
	if _, err := tm.Arm(5); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	w.Tick(5)
	tm.Close()

	DumpTimerTrace()
	if len(lines) < 3 {
		t.Fatalf("Expected dump output, got %d lines", len(lines))
	}
	joined := strings.Join(lines, "\n")
	for _, want := range []string{"INIT", "ARM", "FIRE", "SHUTDOWN", "tok=11"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected dump to mention %q:\n%s", want, joined)
		}
	}
}
