package synth

import (
	"math"
	"sync"
)

// releaseMS is how long a voice takes to fade out after a note-off
const releaseMS = 30

// Fire records one bound event the engine triggered from its sequence table
type Fire struct {
	Tag   uint8
	Tick  uint32
	Event Event
}

// Stats are running counters for status displays
type Stats struct {
	Tick      uint32 `json:"tick"`      // current tick counter
	HookCalls uint64 `json:"hookCalls"` // times OnTick ran
	Blocks    uint64 `json:"blocks"`    // blocks rendered
	Fired     uint64 `json:"fired"`     // bound events triggered
	Bound     int    `json:"bound"`     // occupied sequence slots
}

type slot struct {
	tick   uint32
	period uint32
	event  Event
}

// Engine is a small tick-driven synthesizer. Events may carry a Sequence
// binding; bound events live in a tag-indexed table and are retriggered by
// the engine's own tick counter, so the caller never has to run on the
// audio deadline.
//
// One goroutine may submit events while another renders.
type Engine struct {
	mu sync.Mutex

	tempo     float64
	running   bool
	tick      uint32
	tickPhase float64

	slots   map[uint8]slot
	pending []Event
	oscs    [NumOscs]osc
	block   []int16
	noise   uint32

	onTick func(tick uint32)
	onFire func(f Fire)
	stats  Stats
}

// Option configures an Engine
type Option func(*Engine)

// WithTickHook installs a callback run after every tick increment.
// It runs under the engine lock and must not call back into the engine.
func WithTickHook(fn func(tick uint32)) Option {
	return func(e *Engine) { e.onTick = fn }
}

// WithFireHook installs a callback run for every bound event triggered.
// It runs under the engine lock and must not call back into the engine.
func WithFireHook(fn func(f Fire)) Option {
	return func(e *Engine) { e.onFire = fn }
}

// NewEngine creates an engine at 120 BPM with its clock stopped
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		tempo: 120,
		slots: make(map[uint8]slot),
		block: make([]int16, BlockSize*Channels),
		noise: 0x9E3779B9,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddEvent implements Submitter
func (e *Engine) AddEvent(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ev.IsTempo() {
		e.tempo = float64(ev.Tempo)
	}

	if seq := ev.Sequence; seq != nil {
		if seq.Period == 0 {
			delete(e.slots, seq.Tag)
			return
		}
		ev.Sequence = nil // stored events fire as plain events
		e.slots[seq.Tag] = slot{tick: seq.Tick, period: seq.Period, event: ev}
		return
	}

	if hasVoiceChange(ev) {
		e.pending = append(e.pending, ev)
	}
}

// Ticks implements Clock
func (e *Engine) Ticks() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// ForceInternalClock implements Clock
func (e *Engine) ForceInternalClock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.tick = 0
	e.tickPhase = 0
}

// ResetTicks implements Clock
func (e *Engine) ResetTicks() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tick = 0
	e.tickPhase = 0
}

// Tempo returns the current tempo in BPM
func (e *Engine) Tempo() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tempo
}

// Bound returns the bound slot for tag, if any
func (e *Engine) Bound(tag uint8) (Sequence, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.slots[tag]
	if !ok {
		return Sequence{}, false
	}
	return Sequence{Tag: tag, Tick: s.tick, Period: s.period}, true
}

// Stats returns a snapshot of the engine counters
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.Tick = e.tick
	s.Bound = len(e.slots)
	return s
}

// AdvanceTicks moves the clock forward n ticks without rendering audio.
// Bound events fire exactly as they would during Render.
func (e *Engine) AdvanceTicks(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	for i := 0; i < n; i++ {
		e.advanceTick()
	}
}

// Render synthesizes the next block of BlockSize interleaved stereo frames
// and advances the tick clock by the block's duration. The returned slice
// is reused by the next call.
func (e *Engine) Render() []int16 {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ev := range e.pending {
		e.apply(ev)
	}
	e.pending = e.pending[:0]

	ticksPerSample := float64(PPQ) * e.tempo / 60 / SampleRate
	for i := 0; i < BlockSize; i++ {
		if e.running {
			e.tickPhase += ticksPerSample
			for e.tickPhase >= 1 {
				e.tickPhase--
				e.advanceTick()
			}
		}

		var mix float64
		for o := range e.oscs {
			mix += e.oscs[o].next(&e.noise)
		}
		mix *= 0.25
		if mix > 1 {
			mix = 1
		} else if mix < -1 {
			mix = -1
		}
		v := int16(mix * math.MaxInt16)
		e.block[2*i] = v
		e.block[2*i+1] = v
	}
	e.stats.Blocks++
	return e.block
}

func (e *Engine) advanceTick() {
	e.tick++
	for tag, s := range e.slots {
		if e.tick%s.period != s.tick%s.period {
			continue
		}
		e.apply(s.event)
		e.stats.Fired++
		if e.onFire != nil {
			e.onFire(Fire{Tag: tag, Tick: e.tick, Event: s.event})
		}
	}
	if e.onTick != nil {
		e.stats.HookCalls++
		e.onTick(e.tick)
	}
}

func (e *Engine) apply(ev Event) {
	if int(ev.Osc) >= NumOscs {
		return
	}
	o := &e.oscs[ev.Osc]
	if ev.Wave != WaveUnset {
		o.wave = ev.Wave
	}
	if ev.Freq >= 0 {
		o.freq = float64(ev.Freq)
	}
	if len(ev.Envelope) > 0 {
		n := min(len(ev.Envelope), MaxBreakpoints)
		o.env = append(o.env[:0], ev.Envelope[:n]...)
	}
	switch {
	case ev.Velocity > 0:
		o.noteOn(float64(ev.Velocity))
	case ev.Velocity == 0:
		o.noteOff()
	}
}

func hasVoiceChange(ev Event) bool {
	return ev.Wave != WaveUnset || ev.Freq >= 0 || ev.Velocity >= 0 || len(ev.Envelope) > 0
}
