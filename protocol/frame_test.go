package protocol

import (
	"testing"

	"pitimer/core"
)

func sampleEvents() []core.Event {
	return []core.Event{
		{Kind: core.EvtSchedule, Index: 0, Due: 1100, At: 1000},
		{Kind: core.EvtArm, Due: 1100, At: 1000},
		{Kind: core.EvtFire, Index: 0, Due: 1100, At: 1101},
		{Kind: core.EvtShrink, Index: 1, At: 0x1_0000_0005},
		{Kind: core.EvtStale, Index: 3, At: 0xFFFF_FFFF_FFFF_FFFF},
	}
}

func encodeSample(t *testing.T) ([]byte, int) {
	t.Helper()
	var stream []byte
	frames := 0
	w := NewTraceWriter(func(b []byte) {
		stream = append(stream, b...)
		frames++
	})
	w.WriteEvents(sampleEvents())
	return stream, frames
}

func decodeAll(t *testing.T, d *FrameDecoder) ([]core.Event, []error) {
	t.Helper()
	var events []core.Event
	var errs []error
	for {
		f, err := d.Next()
		if err == ErrNeedMore {
			return events, errs
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		evs, err := DecodeEvents(f.Payload)
		if err != nil {
			t.Fatalf("Failed to decode payload: %v", err)
		}
		events = append(events, evs...)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	stream, frames := encodeSample(t)

	if want := (len(sampleEvents()) + EventsPerFrame - 1) / EventsPerFrame; frames != want {
		t.Errorf("Expected %d frames, got %d", want, frames)
	}

	d := NewFrameDecoder()
	d.Write(stream)
	events, errs := decodeAll(t, d)
	if len(errs) != 0 {
		t.Fatalf("Unexpected errors: %v", errs)
	}

	want := sampleEvents()
	if len(events) != len(want) {
		t.Fatalf("Expected %d events, got %d", len(want), len(events))
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("Event %d: expected %+v, got %+v", i, want[i], events[i])
		}
	}
}

func TestFrameSequenceAndLength(t *testing.T) {
	stream, _ := encodeSample(t)

	d := NewFrameDecoder()
	d.Write(stream)
	for i := 0; i < 3; i++ {
		f, err := d.Next()
		if err != nil {
			t.Fatalf("Frame %d: %v", i, err)
		}
		if f.Seq != uint8(i) {
			t.Errorf("Frame %d: expected seq %d, got %d", i, i, f.Seq)
		}
	}

	if stream[0] > MessageLengthMax || stream[1] != MessageDest {
		t.Errorf("Bad header %x", stream[:2])
	}
}

func TestFrameDecoderPartialWrites(t *testing.T) {
	stream, _ := encodeSample(t)

	d := NewFrameDecoder()
	var events []core.Event
	for _, b := range stream {
		d.Write([]byte{b})
		evs, errs := decodeAll(t, d)
		if len(errs) != 0 {
			t.Fatalf("Unexpected errors: %v", errs)
		}
		events = append(events, evs...)
	}

	if len(events) != len(sampleEvents()) {
		t.Errorf("Expected %d events, got %d", len(sampleEvents()), len(events))
	}
}

func TestFrameDecoderBadCRC(t *testing.T) {
	stream, _ := encodeSample(t)

	// Corrupt a payload byte of the first frame
	stream[3] ^= 0x01

	d := NewFrameDecoder()
	d.Write(stream)
	events, errs := decodeAll(t, d)

	if len(errs) != 1 || errs[0] != ErrBadCRC {
		t.Fatalf("Expected one ErrBadCRC, got %v", errs)
	}
	// The remaining frames still decode
	if len(events) != len(sampleEvents())-EventsPerFrame {
		t.Errorf("Expected %d events after the bad frame, got %d", len(sampleEvents())-EventsPerFrame, len(events))
	}
}

func TestFrameDecoderResyncAfterGarbage(t *testing.T) {
	stream, _ := encodeSample(t)

	d := NewFrameDecoder()
	d.Write([]byte{0x03, 0x99, 0x42, MessageValueSync})
	d.Write(stream)
	events, errs := decodeAll(t, d)

	if len(errs) != 1 || errs[0] != ErrBadFrame {
		t.Fatalf("Expected one ErrBadFrame, got %v", errs)
	}
	if len(events) != len(sampleEvents()) {
		t.Errorf("Expected %d events after resync, got %d", len(sampleEvents()), len(events))
	}
}

func TestDecodeEventUnknownKind(t *testing.T) {
	output := NewScratchOutput()
	EncodeVLQUint(output, 42)

	data := output.Result()
	if _, err := DecodeEvent(&data); err != ErrUnknownEvent {
		t.Errorf("Expected ErrUnknownEvent, got %v", err)
	}
}
