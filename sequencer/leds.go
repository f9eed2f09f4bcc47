package sequencer

import (
	"strconv"

	"seqbox/midi"
	"seqbox/widgets"
)

// LEDState describes the state of a single LED
type LEDState struct {
	Row, Col int
	Color    [3]uint8 // RGB color - controller maps to its palette
	Channel  uint8    // 0=static, 1=flash, 2=pulse
}

// Pad colors
var (
	trackColors = [Tracks][3]uint8{
		{234, 73, 116},  // BD pink
		{253, 157, 110}, // SD orange
		{80, 150, 255},  // CH blue
		{148, 18, 126},  // OH purple
	}
	playheadColor = [3]uint8{255, 255, 255}
	selectedColor = [3]uint8{255, 255, 255}
	playColor     = [3]uint8{0, 255, 0}
	stopColor     = [3]uint8{180, 60, 60}
	tempoColor    = [3]uint8{255, 200, 0}
	editColor     = [3]uint8{0, 200, 200}
	clearColor    = [3]uint8{255, 0, 0}
)

// Top row controls
const (
	padPlay = iota
	padTempoDown
	padTempoUp
	padEdit
	padClear
)

func dim(c [3]uint8) [3]uint8 {
	return [3]uint8{c[0] / 4, c[1] / 4, c[2] / 4}
}

// padFor returns the Launchpad pad of a cell: two rows per track from the
// top, steps 0-7 on the upper row and 8-15 below it
func padFor(track, step int) (row, col int) {
	return 7 - 2*track - step/8, step % 8
}

// cellFor is the inverse of padFor for grid pads
func cellFor(row, col int) (track, step int) {
	return (7 - row) / 2, col + 8*((7-row)%2)
}

// renderLEDs draws the whole surface from a state snapshot
func renderLEDs(st State, selTrack, selStep int, editMode bool) []LEDState {
	leds := make([]LEDState, 0, Tracks*Steps+Tracks*2+5)

	for t := 0; t < Tracks; t++ {
		for s := 0; s < Steps; s++ {
			row, col := padFor(t, s)
			led := LEDState{Row: row, Col: col, Color: dim(trackColors[t]), Channel: midi.ChannelStatic}
			switch {
			case st.Playing && int(st.CurrentStep) == s:
				led.Color = playheadColor
				led.Channel = midi.ChannelPulse
			case st.Grid[t][s]:
				led.Color = trackColors[t]
			}
			if editMode && t == selTrack && s == selStep {
				led.Channel = midi.ChannelFlash
				if !st.Grid[t][s] {
					led.Color = trackColors[t]
				}
			}
			leds = append(leds, led)
		}

		// scene column selects the track
		c := dim(trackColors[t])
		if t == selTrack {
			c = selectedColor
		}
		leds = append(leds,
			LEDState{Row: 7 - 2*t, Col: 8, Color: c},
			LEDState{Row: 6 - 2*t, Col: 8, Color: c},
		)
	}

	play := stopColor
	if st.Playing {
		play = playColor
	}
	edit := dim(editColor)
	if editMode {
		edit = editColor
	}
	leds = append(leds,
		LEDState{Row: 8, Col: padPlay, Color: play},
		LEDState{Row: 8, Col: padTempoDown, Color: dim(tempoColor)},
		LEDState{Row: 8, Col: padTempoUp, Color: tempoColor},
		LEDState{Row: 8, Col: padEdit, Color: edit},
		LEDState{Row: 8, Col: padClear, Color: clearColor},
	)
	return leds
}

// HelpLayout describes the Launchpad surface for the TUI
func HelpLayout(voices [Tracks]Voice) widgets.LaunchpadLayout {
	var layout widgets.LaunchpadLayout

	layout.TopRow[padPlay] = widgets.PadConfig{Color: playColor, Tooltip: "Play / Pause"}
	layout.TopRow[padTempoDown] = widgets.PadConfig{Color: dim(tempoColor), Tooltip: "Tempo -1"}
	layout.TopRow[padTempoUp] = widgets.PadConfig{Color: tempoColor, Tooltip: "Tempo +1"}
	layout.TopRow[padEdit] = widgets.PadConfig{Color: editColor, Tooltip: "Edit Mode"}
	layout.TopRow[padClear] = widgets.PadConfig{Color: clearColor, Tooltip: "Clear Track"}

	for t := 0; t < Tracks; t++ {
		name := voices[t].Name
		for s := 0; s < Steps; s++ {
			row, col := padFor(t, s)
			layout.Grid[row][col] = widgets.PadConfig{Color: trackColors[t], Tooltip: name + " step " + strconv.Itoa(s+1)}
		}
		layout.RightCol[7-2*t] = widgets.PadConfig{Color: dim(trackColors[t]), Tooltip: "Select " + name}
		layout.RightCol[6-2*t] = widgets.PadConfig{Color: dim(trackColors[t]), Tooltip: "Select " + name}
	}
	return layout
}

// HelpZones is the legend for HelpLayout
func HelpZones() []widgets.Zone {
	return []widgets.Zone{
		{Name: "Steps", Color: trackColors[0], Desc: "two rows per track, tap to toggle"},
		{Name: "Select", Color: dim(trackColors[3]), Desc: "scene buttons pick the cursor track"},
		{Name: "Transport", Color: playColor, Desc: "play, tempo -/+, edit, clear"},
	}
}
