package synth

import "testing"

func boundEvent(tag uint8, tick, period uint32) Event {
	e := DefaultEvent()
	e.Velocity = 1
	e.Freq = 440
	e.Wave = Sine
	e.Sequence = &Sequence{Tag: tag, Tick: tick, Period: period}
	return e
}

func TestBoundEventFiresEveryPeriod(t *testing.T) {
	var fired []Fire
	e := NewEngine(WithFireHook(func(f Fire) { fired = append(fired, f) }))
	e.ForceInternalClock()
	e.AddEvent(boundEvent(3, 5, 20))

	e.AdvanceTicks(60)

	if len(fired) != 3 {
		t.Fatalf("expected 3 triggers in 60 ticks, got %d", len(fired))
	}
	for i, f := range fired {
		want := uint32(5 + 20*i)
		if f.Tick != want || f.Tag != 3 {
			t.Errorf("fire %d: got tag=%d tick=%d, want tag=3 tick=%d", i, f.Tag, f.Tick, want)
		}
	}
}

func TestPeriodZeroClearsSlot(t *testing.T) {
	fired := 0
	e := NewEngine(WithFireHook(func(Fire) { fired++ }))
	e.ForceInternalClock()
	e.AddEvent(boundEvent(7, 1, 10))
	if _, ok := e.Bound(7); !ok {
		t.Fatal("slot 7 should be bound")
	}

	clear := DefaultEvent()
	clear.Sequence = &Sequence{Tag: 7}
	e.AddEvent(clear)

	if _, ok := e.Bound(7); ok {
		t.Fatal("slot 7 should be cleared")
	}
	e.AdvanceTicks(30)
	if fired != 0 {
		t.Errorf("cleared slot fired %d times", fired)
	}
}

func TestTickAtPeriodFiresOnWrap(t *testing.T) {
	var ticks []uint32
	e := NewEngine(WithFireHook(func(f Fire) { ticks = append(ticks, f.Tick) }))
	e.ForceInternalClock()
	e.AddEvent(boundEvent(1, 16, 16))
	e.AdvanceTicks(32)

	if len(ticks) != 2 || ticks[0] != 16 || ticks[1] != 32 {
		t.Errorf("got fires at %v, want [16 32]", ticks)
	}
}

func TestClockStoppedUntilForced(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 10; i++ {
		e.Render()
	}
	if got := e.Ticks(); got != 0 {
		t.Fatalf("stopped clock advanced to %d", got)
	}

	e.ForceInternalClock()
	for i := 0; i < 10; i++ {
		e.Render()
	}
	if e.Ticks() == 0 {
		t.Fatal("running clock did not advance")
	}

	before := e.Ticks()
	e.ForceInternalClock() // already running: must not reset
	if got := e.Ticks(); got != before {
		t.Errorf("ForceInternalClock reset a running clock: %d -> %d", before, got)
	}

	e.ResetTicks()
	if got := e.Ticks(); got != 0 {
		t.Errorf("ResetTicks left tick at %d", got)
	}
}

func TestRenderTickRateFollowsTempo(t *testing.T) {
	tests := []struct {
		bpm  float32
		want uint32 // ticks in one second of audio
	}{
		{60, PPQ},
		{120, 2 * PPQ},
		{300, 5 * PPQ},
	}
	for _, tt := range tests {
		e := NewEngine()
		tempo := DefaultEvent()
		tempo.Tempo = tt.bpm
		e.AddEvent(tempo)
		e.ForceInternalClock()

		blocks := SampleRate / BlockSize
		for i := 0; i < blocks; i++ {
			e.Render()
		}
		// one second is 187.5 blocks; the missing half block is under one tick
		got := e.Ticks()
		if got > tt.want || tt.want-got > 1 {
			t.Errorf("bpm %v: got %d ticks, want about %d", tt.bpm, got, tt.want)
		}
	}
}

func TestRenderProducesSoundForTriggeredNote(t *testing.T) {
	e := NewEngine()
	ev := DefaultEvent()
	ev.Osc = 2
	ev.Wave = Square
	ev.Freq = 220
	ev.Velocity = 1
	e.AddEvent(ev)

	block := e.Render()
	if len(block) != BlockSize*Channels {
		t.Fatalf("block has %d samples, want %d", len(block), BlockSize*Channels)
	}
	nonZero := false
	for i := 0; i < len(block); i += 2 {
		if block[i] != block[i+1] {
			t.Fatalf("frame %d not mirrored: L=%d R=%d", i/2, block[i], block[i+1])
		}
		if block[i] != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		t.Error("triggered oscillator produced silence")
	}
}

func TestTickHookCounts(t *testing.T) {
	var last uint32
	e := NewEngine(WithTickHook(func(tick uint32) { last = tick }))
	e.ForceInternalClock()
	e.AdvanceTicks(25)

	if last != 25 {
		t.Errorf("hook saw tick %d, want 25", last)
	}
	if s := e.Stats(); s.HookCalls != 25 || s.Tick != 25 {
		t.Errorf("stats = %+v", s)
	}
}
