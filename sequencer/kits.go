package sequencer

import "seqbox/synth"

// Voice is the timbre a track's steps trigger
type Voice struct {
	Name     string
	Wave     synth.Wave
	Freq     float32
	Envelope []synth.Breakpoint
}

// Kit assigns a voice to every track
type Kit struct {
	Name   string
	Voices [Tracks]Voice
}

// short attack then decay to silence
var pluck = []synth.Breakpoint{{TimeMS: 10, Value: 1}, {TimeMS: 100, Value: 0}}

// Track slots:
// 0: Bass drum
// 1: Snare
// 2: Closed HH
// 3: Open HH

// Kits contains all available voice sets
var Kits = map[string]Kit{
	"sine": {
		Name: "Sine",
		Voices: [Tracks]Voice{
			{Name: "BD", Wave: synth.Sine, Freq: 60, Envelope: pluck},
			{Name: "SD", Wave: synth.Sine, Freq: 200, Envelope: pluck},
			{Name: "CH", Wave: synth.Sine, Freq: 800, Envelope: pluck},
			{Name: "OH", Wave: synth.Sine, Freq: 400, Envelope: pluck},
		},
	},
	"noise": {
		Name: "Noise",
		Voices: [Tracks]Voice{
			{Name: "BD", Wave: synth.Sine, Freq: 50, Envelope: []synth.Breakpoint{{TimeMS: 2, Value: 1}, {TimeMS: 180, Value: 0}}},
			{Name: "SD", Wave: synth.Noise, Freq: 0, Envelope: []synth.Breakpoint{{TimeMS: 1, Value: 0.8}, {TimeMS: 120, Value: 0}}},
			{Name: "CH", Wave: synth.Noise, Freq: 0, Envelope: []synth.Breakpoint{{TimeMS: 1, Value: 0.5}, {TimeMS: 30, Value: 0}}},
			{Name: "OH", Wave: synth.Noise, Freq: 0, Envelope: []synth.Breakpoint{{TimeMS: 1, Value: 0.5}, {TimeMS: 250, Value: 0}}},
		},
	},
	"chip": {
		Name: "Chip",
		Voices: [Tracks]Voice{
			{Name: "BD", Wave: synth.Triangle, Freq: 65, Envelope: pluck},
			{Name: "SD", Wave: synth.Square, Freq: 220, Envelope: pluck},
			{Name: "CH", Wave: synth.Square, Freq: 1760, Envelope: []synth.Breakpoint{{TimeMS: 1, Value: 0.6}, {TimeMS: 40, Value: 0}}},
			{Name: "OH", Wave: synth.Saw, Freq: 880, Envelope: pluck},
		},
	},
}

// KitNames returns the list of available kit names
func KitNames() []string {
	return []string{"sine", "noise", "chip"}
}

// GetKit returns a kit by name, defaulting to sine if not found
func GetKit(name string) Kit {
	if kit, ok := Kits[name]; ok {
		return kit
	}
	return Kits[DefaultKit]
}

// DefaultKit is the default kit name
const DefaultKit = "sine"
