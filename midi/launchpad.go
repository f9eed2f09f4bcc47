package midi

import (
	"fmt"
	"sync/atomic"

	"seqbox/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Launchpad X SysEx bodies (without F0/F7)
var (
	sysexProgrammerMode = []byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x00, 0x7F}
	sysexBrightnessMax  = []byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x08, 0x7F}
	sysexLEDFeedback    = []byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x0A, 0x01, 0x01}
)

// LaunchpadController handles a Novation Launchpad X in programmer mode
type LaunchpadController struct {
	id       string
	send     func(msg gomidi.Message) error
	stopFunc func()

	padChan  chan PadEvent
	noteChan chan NoteEvent

	sent atomic.Uint64 // LED messages sent
}

// NewLaunchpadController opens the ports and switches the device to
// programmer mode. Either port may be nil.
func NewLaunchpadController(id string, inPort drivers.In, outPort drivers.Out) (*LaunchpadController, error) {
	lp := &LaunchpadController{
		id:       id,
		padChan:  make(chan PadEvent, 32),
		noteChan: make(chan NoteEvent, 32),
	}

	if outPort != nil {
		send, err := gomidi.SendTo(outPort)
		if err != nil {
			return nil, fmt.Errorf("open output: %w", err)
		}
		lp.send = send
		for _, body := range [][]byte{sysexProgrammerMode, sysexBrightnessMax, sysexLEDFeedback} {
			if err := lp.send(gomidi.SysEx(body)); err != nil {
				return nil, fmt.Errorf("configure %s: %w", id, err)
			}
		}
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, lp.receive)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		lp.stopFunc = stop
	}

	debug.Log("ctrl", "launchpad %s ready (in=%v out=%v)", id, inPort != nil, outPort != nil)
	return lp, nil
}

func (lp *LaunchpadController) receive(msg gomidi.Message, timestampms int32) {
	var channel, note, velocity uint8
	var cc, value uint8

	// grid + scene column arrive as notes, the top row as CC 91-98
	switch {
	case msg.GetNoteOn(&channel, &note, &velocity) && velocity > 0:
		if row, col := noteToRowCol(note); row >= 0 {
			lp.emit(PadEvent{Row: row, Col: col, Velocity: velocity})
		}
	case msg.GetControlChange(&channel, &cc, &value) && value > 0:
		if row, col := ccToRowCol(cc); row >= 0 {
			lp.emit(PadEvent{Row: row, Col: col, Velocity: value})
		}
	}
}

func (lp *LaunchpadController) emit(ev PadEvent) {
	select {
	case lp.padChan <- ev:
	default:
		debug.Log("ctrl", "pad event dropped row=%d col=%d", ev.Row, ev.Col)
	}
}

func (lp *LaunchpadController) ID() string {
	return lp.id
}

func (lp *LaunchpadController) Type() ControllerType {
	return ControllerLaunchpad
}

func (lp *LaunchpadController) PadEvents() <-chan PadEvent {
	return lp.padChan
}

func (lp *LaunchpadController) NoteEvents() <-chan NoteEvent {
	return lp.noteChan // pads are reported as PadEvents only
}

// LEDsSent returns how many LED messages went out
func (lp *LaunchpadController) LEDsSent() uint64 {
	return lp.sent.Load()
}

func (lp *LaunchpadController) SetLEDRGB(row, col int, rgb [3]uint8, channel uint8) error {
	if lp.send == nil {
		return nil
	}
	lp.sent.Add(1)
	return lp.send(gomidi.NoteOn(channel, rowColToNote(row, col), mapRGBToLaunchpad(rgb)))
}

// SetLEDBatch sends one NoteOn per update. The caller diffs, so batches
// only contain changed pads.
func (lp *LaunchpadController) SetLEDBatch(updates []LEDUpdate) error {
	if lp.send == nil || len(updates) == 0 {
		return nil
	}
	for _, u := range updates {
		if err := lp.send(gomidi.NoteOn(u.Channel, rowColToNote(u.Row, u.Col), mapRGBToLaunchpad(u.Color))); err != nil {
			return fmt.Errorf("led %d,%d: %w", u.Row, u.Col, err)
		}
	}
	n := lp.sent.Add(uint64(len(updates)))
	debug.LogEvery(50, "led", "%s sent=%d batch=%d", lp.id, n, len(updates))
	return nil
}

// launchpadPalette holds approximate RGB values for a subset of the
// Launchpad X velocity palette: {velocity, R, G, B}
var launchpadPalette = [][4]uint8{
	{0, 0, 0, 0},         // off
	{5, 255, 0, 0},       // red
	{6, 255, 80, 80},     // bright red
	{7, 180, 60, 60},     // dim red
	{9, 255, 100, 0},     // orange
	{11, 180, 80, 40},    // dim orange
	{13, 255, 200, 0},    // yellow
	{17, 0, 180, 0},      // green
	{19, 0, 100, 0},      // dim green
	{21, 0, 255, 0},      // bright green
	{37, 0, 200, 200},    // cyan
	{43, 40, 60, 120},    // dim blue
	{45, 0, 100, 255},    // blue
	{47, 80, 150, 255},   // bright blue
	{49, 150, 0, 200},    // purple
	{53, 255, 80, 180},   // pink
	{78, 100, 100, 255},  // light blue
	{84, 255, 150, 50},   // bright orange
	{87, 150, 255, 100},  // lime
	{97, 180, 180, 60},   // dim yellow
	{119, 255, 255, 255}, // white
}

// mapRGBToLaunchpad finds the nearest palette velocity for an RGB value
func mapRGBToLaunchpad(rgb [3]uint8) uint8 {
	best := uint8(0)
	bestDist := -1
	r, g, b := int(rgb[0]), int(rgb[1]), int(rgb[2])
	for _, p := range launchpadPalette {
		dr, dg, db := r-int(p[1]), g-int(p[2]), b-int(p[3])
		dist := dr*dr + dg*dg + db*db
		if bestDist < 0 || dist < bestDist {
			bestDist = dist
			best = p[0]
		}
	}
	return best
}

func (lp *LaunchpadController) Close() error {
	if lp.send != nil {
		var updates []LEDUpdate
		for row := 0; row < 9; row++ {
			for col := 0; col < 9; col++ {
				if row == 8 && col == 8 {
					continue // no LED at 8,8
				}
				updates = append(updates, LEDUpdate{Row: row, Col: col})
			}
		}
		lp.SetLEDBatch(updates)
	}
	if lp.stopFunc != nil {
		lp.stopFunc()
	}
	close(lp.padChan)
	close(lp.noteChan)
	debug.Log("ctrl", "launchpad %s closed after %d LED messages", lp.id, lp.LEDsSent())
	return nil
}

// Launchpad X note mapping
// 8x8 Grid:  Row 0 (bottom) = notes 11-18, Row 7 = notes 81-88
// Side col:  Col 8 = notes 19, 29, ... 89
// Top row:   Row 8 = CC 91-98 (LEDs addressed as notes 91-98)

func rowColToNote(row, col int) uint8 {
	if row == 8 {
		return uint8(91 + col)
	}
	return uint8((row+1)*10 + col + 1)
}

func noteToRowCol(note uint8) (row, col int) {
	if note >= 91 && note <= 98 {
		return 8, int(note - 91)
	}
	row = int(note/10) - 1
	col = int(note%10) - 1
	if row < 0 || row > 7 || col < 0 || col > 8 {
		return -1, -1
	}
	return row, col
}

func ccToRowCol(cc uint8) (row, col int) {
	if cc >= 91 && cc <= 98 {
		return 8, int(cc - 91)
	}
	return -1, -1
}
