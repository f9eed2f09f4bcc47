package sequencer

import (
	"testing"

	"seqbox/synth"
)

type recorder struct {
	events []synth.Event
}

func (r *recorder) AddEvent(e synth.Event) { r.events = append(r.events, e) }

func (r *recorder) reset() { r.events = nil }

func (r *recorder) tempos() []float32 {
	var out []float32
	for _, e := range r.events {
		if e.IsTempo() {
			out = append(out, e.Tempo)
		}
	}
	return out
}

type fakeClock struct {
	ticks   uint32
	running bool
	forced  int
	resets  int
}

func (c *fakeClock) Ticks() uint32 { return c.ticks }

func (c *fakeClock) ForceInternalClock() {
	c.forced++
	if !c.running {
		c.running = true
		c.ticks = 0
	}
}

func (c *fakeClock) ResetTicks() {
	c.resets++
	c.ticks = 0
}

func newTestCore(opts ...Option) (*Core, *recorder, *fakeClock) {
	rec := &recorder{}
	clk := &fakeClock{}
	c := NewCore(rec, clk, opts...)
	c.Init()
	rec.reset()
	return c, rec, clk
}

func TestTagsUnique(t *testing.T) {
	seen := make(map[uint8]string)
	for tr := 0; tr < Tracks; tr++ {
		for s := 0; s < Steps; s++ {
			on, off := OnTag(tr, s), OffTag(tr, s)
			if prev, ok := seen[on]; ok {
				t.Fatalf("on tag %d of (%d,%d) already used by %s", on, tr, s, prev)
			}
			seen[on] = "on"
			if prev, ok := seen[off]; ok {
				t.Fatalf("off tag %d of (%d,%d) already used by %s", off, tr, s, prev)
			}
			seen[off] = "off"
			if int(on) >= Tracks*Steps {
				t.Errorf("on tag %d outside the on range", on)
			}
			if int(off) < Tracks*Steps || int(off) >= 2*Tracks*Steps {
				t.Errorf("off tag %d outside the off range", off)
			}
		}
	}
	if len(seen) != 2*Tracks*Steps {
		t.Errorf("got %d distinct tags, want %d", len(seen), 2*Tracks*Steps)
	}
}

func TestTicksNeverZero(t *testing.T) {
	for s := 0; s < Steps; s++ {
		on, off := TickOn(s), TickOff(s)
		if on == 0 || off == 0 {
			t.Errorf("step %d: on=%d off=%d", s, on, off)
		}
		if on > BarTicks || off > BarTicks {
			t.Errorf("step %d: tick beyond bar: on=%d off=%d", s, on, off)
		}
		if off == on {
			t.Errorf("step %d: gate of zero length", s)
		}
	}
	if TickOn(0) != 1 || TickOff(0) != 1+GateTicks {
		t.Errorf("step 0: on=%d off=%d", TickOn(0), TickOff(0))
	}
}

func TestClampBPM(t *testing.T) {
	tests := []struct {
		in   int
		want uint16
	}{
		{10, 40},
		{1000, 300},
		{120, 120},
		{40, 40},
		{300, 300},
		{-5, 40},
	}
	for _, tt := range tests {
		if got := ClampBPM(tt.in); got != tt.want {
			t.Errorf("ClampBPM(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
	for x := -500; x <= 1500; x++ {
		once := ClampBPM(x)
		if once < MinBPM || once > MaxBPM {
			t.Fatalf("ClampBPM(%d) = %d out of range", x, once)
		}
		if twice := ClampBPM(int(once)); twice != once {
			t.Fatalf("ClampBPM not idempotent at %d: %d then %d", x, once, twice)
		}
	}
}

func TestInit(t *testing.T) {
	rec := &recorder{}
	clk := &fakeClock{ticks: 77}
	c := NewCore(rec, clk, WithBPM(1000))
	c.Init()

	if got := rec.tempos(); len(got) != 1 || got[0] != 300 {
		t.Errorf("tempo events = %v, want [300]", got)
	}
	if len(rec.events) != 1 {
		t.Errorf("init submitted %d events, want 1", len(rec.events))
	}
	if !clk.running || clk.ticks != 0 {
		t.Errorf("clock not on bar boundary: %+v", clk)
	}
	if c.CurrentStep() != 0 {
		t.Errorf("current step = %d", c.CurrentStep())
	}
}

func TestSetStepEmitsPair(t *testing.T) {
	c, rec, _ := newTestCore()

	c.SetStep(1, 3, true)
	if len(rec.events) != 2 {
		t.Fatalf("got %d events, want 2", len(rec.events))
	}
	on, off := rec.events[0], rec.events[1]
	if on.Sequence == nil || off.Sequence == nil {
		t.Fatal("events must be bound")
	}
	if on.Sequence.Tag != OnTag(1, 3) || on.Sequence.Tick != TickOn(3) || on.Sequence.Period != BarTicks {
		t.Errorf("on binding = %+v", *on.Sequence)
	}
	if on.Velocity != 1 || on.Osc != 1 || on.Freq != c.Voices()[1].Freq || len(on.Envelope) != 2 {
		t.Errorf("on event = %+v", on)
	}
	if off.Sequence.Tag != OffTag(1, 3) || off.Sequence.Tick != TickOff(3) || off.Sequence.Period != BarTicks {
		t.Errorf("off binding = %+v", *off.Sequence)
	}
	if off.Velocity != 0 || off.Osc != 1 {
		t.Errorf("off event = %+v", off)
	}
}

func TestSetStepIdempotent(t *testing.T) {
	c, rec, _ := newTestCore()

	c.SetStep(0, 0, true)
	c.SetStep(0, 0, true)
	if len(rec.events) != 2 {
		t.Errorf("repeat SetStep submitted %d events, want 2", len(rec.events))
	}

	rec.reset()
	c.SetStep(0, 0, false)
	c.SetStep(0, 0, false)
	if len(rec.events) != 2 {
		t.Fatalf("clearing submitted %d events, want 2", len(rec.events))
	}
	for i, e := range rec.events {
		if e.Sequence == nil || e.Sequence.Period != 0 || e.Sequence.Tick != 0 {
			t.Errorf("event %d is not a clear: %+v", i, e.Sequence)
		}
	}
	if rec.events[0].Sequence.Tag != OnTag(0, 0) || rec.events[1].Sequence.Tag != OffTag(0, 0) {
		t.Error("clears must go on tag first, then off tag")
	}
}

func TestSetStepOutOfRange(t *testing.T) {
	c, rec, _ := newTestCore()
	for _, cell := range [][2]int{{-1, 0}, {Tracks, 0}, {0, -1}, {0, Steps}} {
		c.SetStep(cell[0], cell[1], true)
	}
	if len(rec.events) != 0 {
		t.Errorf("out-of-range cells submitted %d events", len(rec.events))
	}
	if c.Step(Tracks, 0) {
		t.Error("out-of-range Step reported true")
	}
}

func TestSetBPM(t *testing.T) {
	c, rec, _ := newTestCore()

	c.SetBPM(120) // unchanged from default
	c.SetBPM(130)
	c.SetBPM(130)
	c.SetBPM(1000)
	c.SetBPM(5000) // clamps to the same 300
	c.SetBPM(10)

	want := []float32{130, 300, 40}
	got := rec.tempos()
	if len(got) != len(want) {
		t.Fatalf("tempo events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tempo %d = %v, want %v", i, got[i], want[i])
		}
	}
	if c.BPM() != 40 {
		t.Errorf("BPM = %d", c.BPM())
	}
}

func TestPauseClearsAllTags(t *testing.T) {
	c, rec, _ := newTestCore()
	c.SetStep(0, 0, true)
	c.SetStep(3, 15, true)
	rec.reset()

	c.SetPlaying(false)

	cleared := make(map[uint8]bool)
	for _, e := range rec.events {
		if e.Sequence == nil || e.Sequence.Period != 0 {
			t.Fatalf("pause submitted a non-clear event: %+v", e)
		}
		cleared[e.Sequence.Tag] = true
	}
	for tag := 0; tag < 2*Tracks*Steps; tag++ {
		if !cleared[uint8(tag)] {
			t.Errorf("tag %d not cleared", tag)
		}
	}

	rec.reset()
	c.SetPlaying(false)
	if len(rec.events) != 0 {
		t.Errorf("repeated pause submitted %d events", len(rec.events))
	}
}

func TestPausedSetStepOnlyClears(t *testing.T) {
	c, rec, _ := newTestCore(WithPlaying(false))
	c.SetStep(2, 5, true)
	if len(rec.events) != 2 {
		t.Fatalf("got %d events, want 2", len(rec.events))
	}
	for _, e := range rec.events {
		if e.Sequence.Period != 0 {
			t.Errorf("paused core bound an event: %+v", e.Sequence)
		}
	}
	if !c.Step(2, 5) {
		t.Error("grid not updated while paused")
	}
}

func TestPlayResyncs(t *testing.T) {
	c, rec, clk := newTestCore(WithPlaying(false))
	c.SetStep(1, 4, true)
	rec.reset()
	clk.ticks = 99
	forced := clk.forced

	c.SetPlaying(true)

	if clk.forced == forced || clk.ticks != 0 {
		t.Errorf("clock not realigned: %+v", clk)
	}
	if len(rec.events) != 2*Tracks*Steps {
		t.Fatalf("resync submitted %d events, want %d", len(rec.events), 2*Tracks*Steps)
	}
	bound := 0
	for _, e := range rec.events {
		if e.Sequence.Period == BarTicks {
			bound++
			if e.Sequence.Tag != OnTag(1, 4) && e.Sequence.Tag != OffTag(1, 4) {
				t.Errorf("unexpected binding %+v", e.Sequence)
			}
		}
	}
	if bound != 2 {
		t.Errorf("got %d bound events, want 2", bound)
	}
}

func TestCurrentStepWhilePaused(t *testing.T) {
	c, _, clk := newTestCore()
	clk.ticks = 5*TicksPerStep + 3
	if got := c.CurrentStep(); got != 5 {
		t.Fatalf("CurrentStep = %d, want 5", got)
	}
	c.SetPlaying(false)
	clk.ticks = 9 * TicksPerStep
	if got := c.CurrentStep(); got != 5 {
		t.Errorf("paused CurrentStep = %d, want last value 5", got)
	}
	forced := clk.forced
	c.CurrentStep()
	if clk.forced != forced {
		t.Error("paused CurrentStep touched the clock")
	}
}

func TestNewCoreStartsPlaying(t *testing.T) {
	c := NewCore(&recorder{}, &fakeClock{})
	if !c.Playing() || c.BPM() != DefaultBPM {
		t.Errorf("playing=%v bpm=%d", c.Playing(), c.BPM())
	}
}

func TestSetVoicesRebinds(t *testing.T) {
	c, rec, _ := newTestCore()
	c.SetStep(0, 0, true)
	rec.reset()

	c.SetVoices(GetKit("chip").Voices)
	var on *synth.Event
	for i := range rec.events {
		if s := rec.events[i].Sequence; s != nil && s.Tag == OnTag(0, 0) && s.Period != 0 {
			on = &rec.events[i]
		}
	}
	if on == nil || on.Wave != synth.Triangle {
		t.Errorf("cell not rebound with the new voice: %+v", on)
	}
}

func TestAudition(t *testing.T) {
	c, rec, _ := newTestCore()
	c.Audition(2)
	c.Audition(9)
	if len(rec.events) != 1 {
		t.Fatalf("got %d events, want 1", len(rec.events))
	}
	if e := rec.events[0]; e.Sequence != nil || e.Osc != 2 || e.Velocity != 1 {
		t.Errorf("audition event = %+v", e)
	}
}

// The scenarios below drive the reference engine.

func TestOneBarFiresOnePair(t *testing.T) {
	var fired []synth.Fire
	eng := synth.NewEngine(synth.WithFireHook(func(f synth.Fire) { fired = append(fired, f) }))
	c := NewCore(eng, eng, WithPlaying(false))
	c.Init()

	c.SetStep(0, 0, true)
	c.SetPlaying(true)
	eng.AdvanceTicks(BarTicks)

	if len(fired) != 2 {
		t.Fatalf("got %d triggers in one bar, want 2: %+v", len(fired), fired)
	}
	on, off := fired[0], fired[1]
	if on.Tag != 0 || on.Event.Velocity != 1 || on.Tick != TickOn(0) {
		t.Errorf("note-on = tag %d tick %d vel %v", on.Tag, on.Tick, on.Event.Velocity)
	}
	if off.Tag != Tracks*Steps || off.Event.Velocity != 0 || off.Tick != TickOff(0) {
		t.Errorf("note-off = tag %d tick %d vel %v", off.Tag, off.Tick, off.Event.Velocity)
	}
}

func TestPauseSilencesEngine(t *testing.T) {
	fired := 0
	eng := synth.NewEngine(synth.WithFireHook(func(synth.Fire) { fired++ }))
	c := NewCore(eng, eng)
	c.Init()
	c.SetStep(0, 0, true)
	c.SetStep(1, 8, true)

	c.SetPlaying(false)
	eng.AdvanceTicks(2 * BarTicks)

	if fired != 0 {
		t.Errorf("paused sequencer fired %d events", fired)
	}
	if n := eng.Stats().Bound; n != 0 {
		t.Errorf("%d slots still bound after pause", n)
	}
}

func TestCurrentStepFollowsEngine(t *testing.T) {
	eng := synth.NewEngine()
	c := NewCore(eng, eng)
	c.Init()

	var steps []uint8
	for i := 0; i < 2*BarTicks; i++ {
		steps = append(steps, c.CurrentStep())
		eng.AdvanceTicks(1)
	}

	wraps := 0
	for i := 1; i < len(steps); i++ {
		switch {
		case steps[i] == steps[i-1], steps[i] == steps[i-1]+1:
		case steps[i] == 0 && steps[i-1] == Steps-1:
			wraps++
		default:
			t.Fatalf("step jumped from %d to %d at tick %d", steps[i-1], steps[i], i)
		}
	}
	if wraps != 1 {
		t.Errorf("got %d wraps over two bars, want 1", wraps)
	}
	if steps[TicksPerStep] != 1 || steps[BarTicks-1] != Steps-1 {
		t.Errorf("step at tick %d = %d, at tick %d = %d", TicksPerStep, steps[TicksPerStep], BarTicks-1, steps[BarTicks-1])
	}
}

func TestCurrentStepRateFollowsTempo(t *testing.T) {
	eng := synth.NewEngine()
	c := NewCore(eng, eng, WithBPM(120))
	c.Init()

	// 120 BPM is 8 sixteenths per second
	blocksPerSecond := synth.SampleRate / synth.BlockSize
	for i := 0; i < blocksPerSecond; i++ {
		eng.Render()
	}
	if got := c.CurrentStep(); got != 7 {
		t.Errorf("after ~1s at 120 BPM step = %d, want 7", got)
	}
}
