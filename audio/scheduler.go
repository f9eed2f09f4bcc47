package audio

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"seqbox/debug"
	"seqbox/synth"
)

// BlockPeriod is the playback duration of one rendered block, rounded
// down to the nanosecond. Deadlines are computed from frame counts.
const BlockPeriod = time.Second * synth.BlockSize / synth.SampleRate

// DefaultBackoff is how long the scheduler waits after a truncated write
const DefaultBackoff = time.Millisecond

// BlockSource renders one block of BlockSize interleaved stereo frames
type BlockSource interface {
	Render() []int16
}

// SchedulerStats counts scheduler activity
type SchedulerStats struct {
	Blocks    uint64 `json:"blocks"`
	Overruns  uint64 `json:"overruns"`  // deadlines already missed when reached
	Truncated uint64 `json:"truncated"` // blocks the ring could not take whole
}

// Scheduler renders blocks from Source into Ring at the audio rate. It
// keeps an absolute deadline so timing errors do not accumulate, and when
// it falls behind it renders back to back until caught up instead of
// skipping blocks.
type Scheduler struct {
	Source  BlockSource
	Ring    *Ring
	Backoff time.Duration

	now   func() time.Time
	sleep func(context.Context, time.Duration) bool

	mu    sync.Mutex
	stats SchedulerStats
}

// NewScheduler creates a scheduler using the wall clock
func NewScheduler(src BlockSource, ring *Ring) *Scheduler {
	return &Scheduler{
		Source:  src,
		Ring:    ring,
		Backoff: DefaultBackoff,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Run renders until ctx is done. The calling goroutine is locked to its
// OS thread for the duration.
func (s *Scheduler) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = sleepCtx
	}

	debug.Log("render", "scheduler started, block period %v", BlockPeriod)
	start := s.now()
	var frames int64
	for {
		if ctx.Err() != nil {
			debug.Log("render", "scheduler stopped after %d blocks", s.Stats().Blocks)
			return
		}

		frames += synth.BlockSize
		deadline := start.Add(framesToDuration(frames))
		if wait := deadline.Sub(s.now()); wait > 0 {
			if !s.sleep(ctx, wait) {
				continue
			}
		} else {
			s.mu.Lock()
			s.stats.Overruns++
			s.mu.Unlock()
		}

		block := s.Source.Render()
		_, err := s.Ring.Write(block, len(block)/synth.Channels)

		s.mu.Lock()
		s.stats.Blocks++
		if err != nil {
			s.stats.Truncated++
		}
		s.mu.Unlock()

		if errors.Is(err, ErrTruncated) {
			debug.LogEvery(100, "ring", "block truncated, ring full")
			s.sleep(ctx, s.Backoff)
		}
	}
}

// Stats returns a copy of the scheduler counters
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func framesToDuration(frames int64) time.Duration {
	sec := frames / synth.SampleRate
	rem := frames % synth.SampleRate
	return time.Duration(sec)*time.Second + time.Duration(rem)*time.Second/synth.SampleRate
}

// sleepCtx sleeps for d and reports whether it ran to completion
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
