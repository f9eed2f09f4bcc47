package synth

import "math"

type osc struct {
	wave     Wave
	freq     float64
	phase    float64
	velocity float64
	env      []Breakpoint

	// envelope runtime
	gate    bool
	level   float64
	segment int
	from    float64
	elapsed int // samples into the current segment
	release bool
}

func (o *osc) noteOn(velocity float64) {
	o.velocity = velocity
	o.gate = true
	o.release = false
	o.segment = 0
	o.elapsed = 0
	o.from = o.level
	o.phase = 0
	if len(o.env) == 0 {
		o.level = 1
	}
}

func (o *osc) noteOff() {
	if !o.gate && !o.release {
		return
	}
	o.gate = false
	o.release = true
	o.from = o.level
	o.elapsed = 0
}

// next returns the oscillator's next sample in [-1, 1]
func (o *osc) next(noise *uint32) float64 {
	o.stepEnvelope()
	if o.level == 0 || o.wave == WaveOff || o.freq <= 0 && o.wave != Noise {
		return 0
	}

	var s float64
	switch o.wave {
	case Sine:
		s = math.Sin(2 * math.Pi * o.phase)
	case Saw:
		s = 2*o.phase - 1
	case Square:
		if o.phase < 0.5 {
			s = 1
		} else {
			s = -1
		}
	case Triangle:
		s = 4*math.Abs(o.phase-0.5) - 1
	case Noise:
		// xorshift32
		x := *noise
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		*noise = x
		s = float64(x)/float64(math.MaxUint32)*2 - 1
	}

	o.phase += o.freq / SampleRate
	o.phase -= math.Floor(o.phase)
	return s * o.level * o.velocity
}

func (o *osc) stepEnvelope() {
	if o.release {
		n := msToSamples(releaseMS)
		o.elapsed++
		if o.elapsed >= n {
			o.level = 0
			o.release = false
			return
		}
		o.level = o.from * (1 - float64(o.elapsed)/float64(n))
		return
	}
	if !o.gate || len(o.env) == 0 || o.segment >= len(o.env) {
		return
	}

	bp := o.env[o.segment]
	n := msToSamples(bp.TimeMS)
	o.elapsed++
	if o.elapsed >= n {
		o.level = float64(bp.Value)
		o.from = o.level
		o.segment++
		o.elapsed = 0
		return
	}
	t := float64(o.elapsed) / float64(n)
	o.level = o.from + (float64(bp.Value)-o.from)*t
}

func msToSamples(ms uint32) int {
	n := int(ms) * SampleRate / 1000
	if n < 1 {
		n = 1
	}
	return n
}
