package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"seqbox/synth"
)

// RingCapacity is the number of int16 samples the output ring holds
const RingCapacity = 16384

// ErrTruncated is returned by Write when the ring had no room for the
// whole block. The samples that fit were still written.
var ErrTruncated = errors.New("audio: ring full, block truncated")

// RingStats counts ring activity since creation
type RingStats struct {
	Written   uint64 `json:"written"`   // samples accepted by Write
	Read      uint64 `json:"read"`      // samples handed to the consumer
	Dropped   uint64 `json:"dropped"`   // samples Write could not fit
	Underruns uint64 `json:"underruns"` // reads that had to zero-pad
	Available int    `json:"available"`
	Capacity  int    `json:"capacity"`
}

// Ring is a single-producer single-consumer buffer of interleaved int16
// samples between the render scheduler and the audio sink. One slot is
// always kept free so a full ring is distinguishable from an empty one.
type Ring struct {
	mu   sync.Mutex
	buf  []int16
	mask int
	w, r int

	stats RingStats
}

// NewRing allocates a ring of capacity samples. Capacity must be a power
// of two no smaller than 2.
func NewRing(capacity int) *Ring {
	if capacity < 2 || capacity&(capacity-1) != 0 {
		panic(fmt.Sprintf("audio: ring capacity %d is not a power of two", capacity))
	}
	return &Ring{
		buf:  make([]int16, capacity),
		mask: capacity - 1,
	}
}

// Write appends up to frames interleaved frames from samples. It returns
// the number of samples written and ErrTruncated if any were dropped.
func (r *Ring) Write(samples []int16, frames int) (int, error) {
	want := frames * synth.Channels
	if want > len(samples) {
		want = len(samples)
	}
	if want <= 0 {
		return 0, nil
	}

	r.mu.Lock()
	n := want
	if free := r.free(); n > free {
		n = free
	}
	// at most two copies: up to the end of buf, then from the start
	first := copy(r.buf[r.w:], samples[:n])
	copy(r.buf, samples[first:n])
	r.w = (r.w + n) & r.mask
	r.stats.Written += uint64(n)
	r.stats.Dropped += uint64(want - n)
	r.mu.Unlock()

	if n < want {
		return n, ErrTruncated
	}
	return n, nil
}

// WriteMono writes each sample to both channels
func (r *Ring) WriteMono(samples []int16) (int, error) {
	stereo := make([]int16, 2*len(samples))
	for i, s := range samples {
		stereo[2*i] = s
		stereo[2*i+1] = s
	}
	return r.Write(stereo, len(samples))
}

// Read fills p with little-endian samples. Whatever the ring cannot supply
// is zero-filled, so Read always returns len(p), nil and never blocks.
func (r *Ring) Read(p []byte) (int, error) {
	return r.Pull(p), nil
}

// Pull is Read in the shape of a host pull callback: it fills the whole
// buffer and returns the number of bytes produced.
func (r *Ring) Pull(p []byte) int {
	want := len(p) / 2

	r.mu.Lock()
	n := r.available()
	if n > want {
		n = want
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(p[2*i:], uint16(r.buf[(r.r+i)&r.mask]))
	}
	r.r = (r.r + n) & r.mask
	r.stats.Read += uint64(n)
	if n < want {
		r.stats.Underruns++
	}
	r.mu.Unlock()

	clear(p[2*n:])
	return len(p)
}

// Available is the number of samples waiting to be read
func (r *Ring) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available()
}

// Free is the number of samples Write can accept without truncating
func (r *Ring) Free() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.free()
}

func (r *Ring) Capacity() int { return len(r.buf) }

// Stats returns a copy of the ring counters
func (r *Ring) Stats() RingStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.Available = r.available()
	s.Capacity = len(r.buf)
	return s
}

func (r *Ring) available() int {
	return (r.w - r.r) & r.mask
}

func (r *Ring) free() int {
	return len(r.buf) - r.available() - 1
}
