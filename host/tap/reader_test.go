package tap

import (
	"bytes"
	"testing"
	"time"

	"jiffy/host/serial"
	"jiffy/protocol"
)

// buildStream frames one of everything: a dict row, an on-time fire, a
// late fire, device stats, a mark and the emitter's self row.
func buildStream(t *testing.T) []byte {
	t.Helper()

	var buf []byte
	var err error
	buf, err = protocol.AppendDictFrame(buf, protocol.DictEntry{TickHz: 1000, Token: 3, Name: "blink"})
	if err != nil {
		t.Fatalf("AppendDictFrame failed: %v", err)
	}
	buf, err = protocol.AppendFireFrame(buf, protocol.FireReport{Token: 3, Tick: 100, Wake: 100})
	if err != nil {
		t.Fatalf("AppendFireFrame failed: %v", err)
	}
	buf, err = protocol.AppendFireFrame(buf, protocol.FireReport{Token: 3, Tick: 250, Wake: 240})
	if err != nil {
		t.Fatalf("AppendFireFrame failed: %v", err)
	}
	buf, err = protocol.AppendStatsFrame(buf, protocol.StatsReport{Token: 3, Fires: 40, Late: 2, LastTick: 250})
	if err != nil {
		t.Fatalf("AppendStatsFrame failed: %v", err)
	}
	buf, err = protocol.AppendMarkFrame(buf, protocol.MarkReport{Tick: 260, Text: "probe"})
	if err != nil {
		t.Fatalf("AppendMarkFrame failed: %v", err)
	}
	buf, err = protocol.AppendStatsFrame(buf, protocol.StatsReport{Token: protocol.TokenEmitter, Fires: 10, Late: 1, LastTick: 260})
	if err != nil {
		t.Fatalf("AppendStatsFrame failed: %v", err)
	}
	return buf
}

// runToEOF drains src through a reader and returns it once the loop has
// exited, so snapshots are stable.
func runToEOF(t *testing.T, src []byte) *Reader {
	t.Helper()
	r := NewReader(bytes.NewReader(src))
	r.Start()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for reader to finish")
	}
	return r
}

func TestReaderAggregatesStream(t *testing.T) {
	r := runToEOF(t, buildStream(t))

	table := r.Snapshot()
	if table.Hz != 1000 {
		t.Errorf("Expected 1000 Hz from dict, got %d", table.Hz)
	}
	if table.Frames != 6 || table.CRCErrors != 0 || table.Resyncs != 0 || table.DecodeErrors != 0 {
		t.Errorf("Expected 6 clean frames, got %+v", table)
	}
	if len(table.Timers) != 2 {
		t.Fatalf("Expected 2 timer rows, got %d", len(table.Timers))
	}

	row := table.Timers[0]
	if row.Token != 3 || row.Name != "blink" {
		t.Fatalf("Expected token 3 %q first, got %+v", "blink", row)
	}
	if row.SeenFires != 2 || row.SeenLate != 1 {
		t.Errorf("Expected 2 seen fires with 1 late, got %+v", row)
	}
	if row.Fires != 40 || row.Late != 2 || row.LastTick != 250 {
		t.Errorf("Expected device stats 40/2/250, got %+v", row)
	}
	if row.LastWake != 240 {
		t.Errorf("Expected last wake 240, got %d", row.LastWake)
	}

	self := table.Timers[1]
	if self.Token != protocol.TokenEmitter || self.Fires != 10 || self.Late != 1 {
		t.Errorf("Expected emitter row 10/1, got %+v", self)
	}

	if len(table.Marks) != 1 || table.Marks[0].Text != "probe" || table.Marks[0].Tick != 260 {
		t.Errorf("Expected one mark %q at 260, got %+v", "probe", table.Marks)
	}
}

func TestReaderRepublishesEvents(t *testing.T) {
	r := runToEOF(t, buildStream(t))

	var got []any
	for {
		select {
		case ev := <-r.Events():
			got = append(got, ev)
			continue
		default:
		}
		break
	}
	if len(got) != 6 {
		t.Fatalf("Expected 6 events, got %d", len(got))
	}

	if _, ok := got[0].(protocol.DictEntry); !ok {
		t.Errorf("Expected DictEntry first, got %T", got[0])
	}
	fire, ok := got[1].(protocol.FireReport)
	if !ok {
		t.Fatalf("Expected FireReport second, got %T", got[1])
	}
	if fire != (protocol.FireReport{Token: 3, Tick: 100, Wake: 100}) {
		t.Errorf("Unexpected fire report %+v", fire)
	}
	if _, ok := got[3].(protocol.StatsReport); !ok {
		t.Errorf("Expected StatsReport fourth, got %T", got[3])
	}
	if _, ok := got[4].(protocol.MarkReport); !ok {
		t.Errorf("Expected MarkReport fifth, got %T", got[4])
	}
}

func TestReaderSurvivesGarbage(t *testing.T) {
	valid1, err := protocol.AppendFireFrame(nil, protocol.FireReport{Token: 1, Tick: 2, Wake: 2})
	if err != nil {
		t.Fatalf("AppendFireFrame failed: %v", err)
	}
	valid2, err := protocol.AppendFireFrame(nil, protocol.FireReport{Token: 2, Tick: 3, Wake: 3})
	if err != nil {
		t.Fatalf("AppendFireFrame failed: %v", err)
	}
	// Length 6, type fire, payload 0x0A, deliberately wrong checksum.
	damaged := []byte{0x06, protocol.MsgFire, 0x0A, 0x00, 0x00, protocol.FrameSync}

	var stream []byte
	stream = append(stream, 0xDE, 0xAD, protocol.FrameSync)
	stream = append(stream, valid1...)
	stream = append(stream, damaged...)
	stream = append(stream, valid2...)

	r := runToEOF(t, stream)
	table := r.Snapshot()
	if table.Frames != 2 {
		t.Errorf("Expected 2 frames recovered, got %d", table.Frames)
	}
	if table.CRCErrors != 1 {
		t.Errorf("Expected 1 CRC error, got %d", table.CRCErrors)
	}
	if table.Resyncs != 2 {
		t.Errorf("Expected 2 resyncs, got %d", table.Resyncs)
	}
	if len(table.Timers) != 2 {
		t.Errorf("Expected rows for tokens 1 and 2, got %+v", table.Timers)
	}
}

func TestReaderLiveFeedAndClose(t *testing.T) {
	port := serial.NewMock()
	r := NewReader(port)
	r.Start()

	frame, err := protocol.AppendFireFrame(nil, protocol.FireReport{Token: 4, Tick: 7, Wake: 7})
	if err != nil {
		t.Fatalf("AppendFireFrame failed: %v", err)
	}
	port.Feed(frame)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if table := r.Snapshot(); len(table.Timers) == 1 && table.Timers[0].SeenFires == 1 {
			break
		}
		if !time.Now().Before(deadline) {
			t.Fatal("Timed out waiting for the live fire frame")
		}
		time.Sleep(time.Millisecond)
	}

	// Closing the source ends the loop.
	port.Close()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for reader exit after close")
	}
}

func TestReaderStopExitsLoop(t *testing.T) {
	// A source that always has data never blocks the loop, so Stop is
	// noticed at the next pass.
	r := NewReader(bytes.NewReader(make([]byte, 1<<20)))
	r.Start()
	r.Stop()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for reader exit after Stop")
	}
	r.Stop() // idempotent
}
