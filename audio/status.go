package audio

import "seqbox/synth"

// Status is a snapshot of the whole render pipeline for status views
type Status struct {
	Ring      RingStats      `json:"ring"`
	Scheduler SchedulerStats `json:"scheduler"`
	Engine    synth.Stats    `json:"engine"`
}

// Pipeline groups the pieces whose counters make up a Status
type Pipeline struct {
	Engine    *synth.Engine
	Ring      *Ring
	Scheduler *Scheduler
}

// Status collects the current counters. Missing pieces report zeros.
func (p *Pipeline) Status() Status {
	var s Status
	if p.Ring != nil {
		s.Ring = p.Ring.Stats()
	}
	if p.Scheduler != nil {
		s.Scheduler = p.Scheduler.Stats()
	}
	if p.Engine != nil {
		s.Engine = p.Engine.Stats()
	}
	return s
}
