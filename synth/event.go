package synth

// Engine timing and format constants. These are fixed at build time.
const (
	PPQ         = 48    // engine ticks per quarter note
	SampleRate  = 48000 // Hz
	BlockSize   = 256   // frames per rendered block
	Channels    = 2     // interleaved L, R
	TagCapacity = 256   // sequence tags are uint8

	MaxBreakpoints = 4
	NumOscs        = 16
)

// Wave selects an oscillator waveform
type Wave int8

const (
	WaveUnset Wave = iota - 1 // leave the oscillator's waveform unchanged
	Sine
	Saw
	Square
	Triangle
	Noise
	WaveOff
)

func (w Wave) String() string {
	switch w {
	case Sine:
		return "sine"
	case Saw:
		return "saw"
	case Square:
		return "square"
	case Triangle:
		return "triangle"
	case Noise:
		return "noise"
	case WaveOff:
		return "off"
	default:
		return "unset"
	}
}

// Breakpoint is one envelope segment: ramp to Value over TimeMS
type Breakpoint struct {
	TimeMS uint32
	Value  float32
}

// Sequence binds an event to the engine's tick counter.
// Period 0 clears the slot owned by Tag.
type Sequence struct {
	Tag    uint8
	Tick   uint32
	Period uint32
}

// Event is one synthesis event. Negative Velocity and Freq, and
// WaveUnset, mean "leave unchanged"; Tempo > 0 makes it a tempo update.
type Event struct {
	Osc      uint8
	Wave     Wave
	Velocity float32
	Freq     float32
	Envelope []Breakpoint
	Tempo    float32
	Sequence *Sequence
}

// DefaultEvent returns an event that changes nothing
func DefaultEvent() Event {
	return Event{
		Wave:     WaveUnset,
		Velocity: -1,
		Freq:     -1,
	}
}

// IsTempo reports whether the event carries a tempo update
func (e Event) IsTempo() bool {
	return e.Tempo > 0
}

// Submitter accepts synthesis events. Submission is fire-and-forget.
type Submitter interface {
	AddEvent(e Event)
}

// Clock is the engine's running tick counter and its transport controls.
type Clock interface {
	Ticks() uint32
	// ForceInternalClock starts the internal clock if it is not running,
	// placing the tick counter on a bar boundary. No-op when running.
	ForceInternalClock()
	// ResetTicks moves the tick counter back to 0.
	ResetTicks()
}
