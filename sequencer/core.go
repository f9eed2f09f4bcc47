package sequencer

import (
	"fmt"

	"seqbox/debug"
	"seqbox/synth"
)

// Grid and timing constants. Steps are sixteenth notes.
const (
	Tracks       = 4
	Steps        = 16
	TicksPerStep = synth.PPQ / 4
	BarTicks     = Steps * TicksPerStep
	GateTicks    = TicksPerStep / 3

	MinBPM     = 40
	MaxBPM     = 300
	DefaultBPM = 120
)

// Grid is the on/off state of every step
type Grid [Tracks][Steps]bool

// OnTag is the engine tag owning the note-on binding of a cell
func OnTag(track, step int) uint8 {
	return uint8(track*Steps + step)
}

// OffTag is the engine tag owning the note-off binding of a cell.
// Off tags occupy the range right above all on tags.
func OffTag(track, step int) uint8 {
	return uint8(track*Steps + step + Tracks*Steps)
}

// TickOn is the bar tick at which a step's note-on fires. The engine checks
// bindings after incrementing its counter, so tick 0 is never used.
func TickOn(step int) uint32 {
	return uint32(1 + step*TicksPerStep)
}

// TickOff is the bar tick at which a step's note-off fires
func TickOff(step int) uint32 {
	t := (TickOn(step) + GateTicks) % BarTicks
	if t == 0 {
		t = BarTicks
	}
	return t
}

// ClampBPM limits bpm to [MinBPM, MaxBPM]
func ClampBPM(bpm int) uint16 {
	if bpm < MinBPM {
		return MinBPM
	}
	if bpm > MaxBPM {
		return MaxBPM
	}
	return uint16(bpm)
}

// State is a read-only copy of the sequencer's playback state
type State struct {
	Grid        Grid   `json:"grid"`
	Playing     bool   `json:"playing"`
	BPM         uint16 `json:"bpm"`
	CurrentStep uint8  `json:"currentStep"`
}

// Core keeps the engine's bound events consistent with the step grid and
// playback state. The engine retriggers bound events on its own clock; Core
// only runs when the grid, tempo or transport changes.
//
// Core is not safe for concurrent use. Manager serialises access to it.
type Core struct {
	events synth.Submitter
	clock  synth.Clock
	voices [Tracks]Voice

	grid    Grid
	playing bool
	bpm     uint16
	step    uint8
}

// Option configures a Core
type Option func(*Core)

// WithVoices replaces the per-track timbres
func WithVoices(v [Tracks]Voice) Option {
	return func(c *Core) { c.voices = v }
}

// WithBPM sets the tempo pushed by Init
func WithBPM(bpm int) Option {
	return func(c *Core) { c.bpm = ClampBPM(bpm) }
}

// WithPlaying sets the transport state the core starts in
func WithPlaying(p bool) Option {
	return func(c *Core) { c.playing = p }
}

// NewCore creates a core bound to an engine. It starts playing at
// DefaultBPM with the default kit, like the hardware does at power-on.
func NewCore(events synth.Submitter, clock synth.Clock, opts ...Option) *Core {
	if 2*Tracks*Steps > synth.TagCapacity {
		panic(fmt.Sprintf("sequencer: %d tags needed, engine has %d", 2*Tracks*Steps, synth.TagCapacity))
	}
	c := &Core{
		events:  events,
		clock:   clock,
		voices:  GetKit(DefaultKit).Voices,
		playing: true,
		bpm:     DefaultBPM,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init zeroes the grid, pushes the tempo and puts the engine clock on a bar
// boundary so step 0 lines up with the start of playback.
func (c *Core) Init() {
	c.grid = Grid{}
	c.bpm = ClampBPM(int(c.bpm))
	c.step = 0
	c.pushTempo()
	c.clock.ForceInternalClock()
	c.clock.ResetTicks()
	debug.Log("seq", "core initialized bpm=%d playing=%v", c.bpm, c.playing)
}

// SetStep turns one cell on or off. Out-of-range cells and unchanged
// values are ignored.
func (c *Core) SetStep(track, step int, active bool) {
	if track < 0 || track >= Tracks || step < 0 || step >= Steps {
		return
	}
	if c.grid[track][step] == active {
		return
	}
	c.grid[track][step] = active
	c.emitStep(track, step)
}

// SetBPM clamps bpm and pushes it to the engine if it changed
func (c *Core) SetBPM(bpm int) {
	clamped := ClampBPM(bpm)
	if clamped == c.bpm {
		return
	}
	c.bpm = clamped
	c.pushTempo()
	debug.Log("seq", "bpm=%d", c.bpm)
}

// SetPlaying starts or pauses playback. Starting realigns the engine clock
// and rebinds every cell; pausing clears every binding before returning.
func (c *Core) SetPlaying(p bool) {
	if c.playing == p {
		return
	}
	c.playing = p
	if p {
		c.clock.ForceInternalClock()
		c.clock.ResetTicks()
		c.resync()
		debug.Log("seq", "play")
		return
	}
	c.clearAll()
	debug.Log("seq", "pause")
}

// CurrentStep projects the engine tick counter onto the grid. While paused
// it returns the last value computed during playback.
func (c *Core) CurrentStep() uint8 {
	if c.playing {
		c.clock.ForceInternalClock()
		c.step = uint8((c.clock.Ticks() % BarTicks) / TicksPerStep)
	}
	return c.step
}

// SetVoices swaps the track timbres. Active cells are rebound so the next
// bar already uses the new voices.
func (c *Core) SetVoices(v [Tracks]Voice) {
	c.voices = v
	if c.playing {
		c.resync()
	}
}

// Audition plays a track's voice immediately, outside the sequence table
func (c *Core) Audition(track int) {
	if track < 0 || track >= Tracks {
		return
	}
	c.events.AddEvent(c.noteOn(track))
}

// Step reports whether a cell is active
func (c *Core) Step(track, step int) bool {
	if track < 0 || track >= Tracks || step < 0 || step >= Steps {
		return false
	}
	return c.grid[track][step]
}

func (c *Core) Grid() Grid { return c.grid }

func (c *Core) Playing() bool { return c.playing }

func (c *Core) BPM() uint16 { return c.bpm }

// Voices returns the per-track timbres
func (c *Core) Voices() [Tracks]Voice { return c.voices }

// Snapshot copies the current state without touching the engine clock
func (c *Core) Snapshot() State {
	return State{
		Grid:        c.grid,
		Playing:     c.playing,
		BPM:         c.bpm,
		CurrentStep: c.step,
	}
}

// emitStep rebinds one cell: a note-on/note-off pair when it should sound,
// otherwise a clear of both tags. The clear is sent even for cells that
// were already off since a previous play cycle may have left a binding.
func (c *Core) emitStep(track, step int) {
	tagOn, tagOff := OnTag(track, step), OffTag(track, step)

	if !c.playing || !c.grid[track][step] {
		c.clearTag(tagOn)
		c.clearTag(tagOff)
		return
	}

	on := c.noteOn(track)
	on.Sequence = &synth.Sequence{Tag: tagOn, Tick: TickOn(step), Period: BarTicks}
	c.events.AddEvent(on)

	off := synth.DefaultEvent()
	off.Osc = uint8(track)
	off.Velocity = 0
	off.Sequence = &synth.Sequence{Tag: tagOff, Tick: TickOff(step), Period: BarTicks}
	c.events.AddEvent(off)
}

func (c *Core) noteOn(track int) synth.Event {
	v := c.voices[track]
	ev := synth.DefaultEvent()
	ev.Osc = uint8(track)
	ev.Wave = v.Wave
	ev.Velocity = 1
	ev.Freq = v.Freq
	ev.Envelope = v.Envelope
	return ev
}

func (c *Core) clearTag(tag uint8) {
	ev := synth.DefaultEvent()
	ev.Sequence = &synth.Sequence{Tag: tag}
	c.events.AddEvent(ev)
}

func (c *Core) resync() {
	for t := 0; t < Tracks; t++ {
		for s := 0; s < Steps; s++ {
			c.emitStep(t, s)
		}
	}
}

func (c *Core) clearAll() {
	for t := 0; t < Tracks; t++ {
		for s := 0; s < Steps; s++ {
			c.clearTag(OnTag(t, s))
			c.clearTag(OffTag(t, s))
		}
	}
}

func (c *Core) pushTempo() {
	ev := synth.DefaultEvent()
	ev.Tempo = float32(c.bpm)
	c.events.AddEvent(ev)
}
