package core

import "testing"

// scriptedTimer replays counter words so a carry can land between reads
type scriptedTimer struct {
	mockTimer
	highs []uint32
	lows  []uint32
}

func (s *scriptedTimer) CounterHigh() uint32 {
	v := s.highs[0]
	s.highs = s.highs[1:]
	return v
}

func (s *scriptedTimer) CounterLow() uint32 {
	v := s.lows[0]
	s.lows = s.lows[1:]
	return v
}

func TestClockNowCombinesWords(t *testing.T) {
	m := &mockTimer{now: 0x0000_0002_0000_1234}
	c := NewClock(m)

	if got := c.Now(); got != 0x0000_0002_0000_1234 {
		t.Errorf("Expected 0x200001234, got %#x", uint64(got))
	}
}

func TestClockNowRetriesOnCarry(t *testing.T) {
	// The low word wraps between the first high read and the low read
	s := &scriptedTimer{
		highs: []uint32{0, 1, 1, 1},
		lows:  []uint32{0x00000005, 0x00000006},
	}
	c := NewClock(s)

	got := c.Now()
	if got != 0x1_00000006 {
		t.Errorf("Expected 0x100000006, got %#x", uint64(got))
	}
	if len(s.highs) != 0 || len(s.lows) != 0 {
		t.Errorf("Expected a single retry, %d high and %d low reads left", len(s.highs), len(s.lows))
	}
}

func TestClockNowNonDecreasing(t *testing.T) {
	m := &mockTimer{now: 0xFFFF_FF00, tick: 7}
	c := NewClock(m)

	last := c.Now()
	for i := 0; i < 100; i++ {
		now := c.Now()
		if now < last {
			t.Fatalf("Clock went backwards: %d after %d", now, last)
		}
		last = now
	}
}

func TestClockIsDue(t *testing.T) {
	m := &mockTimer{now: 500}
	c := NewClock(m)

	testCases := []struct {
		t    Micros
		want bool
	}{
		{0, true}, // sentinel, always due
		{1, true},
		{500, true},
		{501, false},
	}

	for _, tc := range testCases {
		if got := c.IsDue(tc.t); got != tc.want {
			t.Errorf("IsDue(%d) at 500: expected %v, got %v", tc.t, tc.want, got)
		}
	}
}

func TestClockSleep(t *testing.T) {
	m := &mockTimer{now: 1000, tick: 3}
	c := NewClock(m)

	start := c.Now()
	c.Sleep(100)
	if end := c.Now(); end < start+100 {
		t.Errorf("Sleep(100) returned at %d, before %d", end, start+100)
	}
}

func TestClockSleepZero(t *testing.T) {
	m := &mockTimer{now: 1000, tick: 1}
	c := NewClock(m)

	c.Sleep(0)
	if m.now != 1000 {
		t.Errorf("Sleep(0) read the counter, now at %d", m.now)
	}
}

func TestSleepCycles(t *testing.T) {
	before := nopSink
	SleepCycles(25)
	if nopSink-before != 25 {
		t.Errorf("Expected 25 no-op cycles, got %d", nopSink-before)
	}
}

func TestMicrosHelpers(t *testing.T) {
	if Millis(3) != 3000 {
		t.Errorf("Millis(3) = %d", Millis(3))
	}
	if Seconds(2) != 2000000 {
		t.Errorf("Seconds(2) = %d", Seconds(2))
	}
}
