package sequencer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"seqbox/debug"
	"seqbox/midi"
	"seqbox/widgets"
)

// Manager is the input task. Every grid, tempo and transport change from
// the TUI, the Launchpad, MIDI keyboards and the HTTP API goes through it,
// so Core only ever sees one caller at a time. It also owns the edit
// cursor and drives the Launchpad LEDs.
type Manager struct {
	mu   sync.Mutex
	core *Core
	kit  string

	selectedTrack int
	selectedStep  int
	editMode      bool

	// LED rendering at fixed FPS
	ledMu      sync.Mutex
	controller midi.Controller
	ledDirty   atomic.Bool
	prevLEDs   map[[2]int]LEDState

	// Notify TUI of updates
	UpdateChan chan struct{}
}

// LED refresh rate
const ledFPS = 30

// NewManager wraps an initialized core. The cursor starts at track 0,
// step 0 in edit mode.
func NewManager(core *Core) *Manager {
	return &Manager{
		core:       core,
		kit:        DefaultKit,
		editMode:   true,
		prevLEDs:   make(map[[2]int]LEDState),
		UpdateChan: make(chan struct{}, 1),
	}
}

// Run drives the LED loop until ctx is done
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / ledFPS)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// the playhead moves on its own while playing
			if m.Playing() {
				m.ledDirty.Store(true)
			}
			if m.ledDirty.Swap(false) {
				m.flushLEDs()
			}
		}
	}
}

// AttachController routes a controller's input into the manager. A
// Launchpad also receives LED feedback. The routing goroutines exit when
// the controller closes its channels.
func (m *Manager) AttachController(c midi.Controller) {
	if c.Type() == midi.ControllerLaunchpad {
		m.SetController(c)
	}
	go func() {
		for pad := range c.PadEvents() {
			m.HandlePad(pad.Row, pad.Col)
		}
	}()
	go func() {
		for n := range c.NoteEvents() {
			m.HandleNote(n.Note, n.Velocity)
		}
	}()
	debug.Log("ctrl", "attached %s (%s)", c.ID(), c.Type())
}

// DetachController drops LED feedback if id is the current controller
func (m *Manager) DetachController(id string) {
	m.ledMu.Lock()
	current := m.controller
	m.ledMu.Unlock()
	if current != nil && current.ID() == id {
		m.SetController(nil)
	}
}

// SetController sets the MIDI controller for LED feedback
func (m *Manager) SetController(c midi.Controller) {
	m.ledMu.Lock()
	m.controller = c
	m.prevLEDs = make(map[[2]int]LEDState) // diff will repaint everything
	m.ledMu.Unlock()
	debug.Log("ctrl", "SetController called, resetting diff state")
	m.ledDirty.Store(true)
}

// Controller returns the controller receiving LED feedback, if any
func (m *Manager) Controller() midi.Controller {
	m.ledMu.Lock()
	defer m.ledMu.Unlock()
	return m.controller
}

// RenderLEDs returns the full LED surface for the current state
func (m *Manager) RenderLEDs() []LEDState {
	m.mu.Lock()
	m.core.CurrentStep()
	st := m.core.Snapshot()
	track, step, edit := m.selectedTrack, m.selectedStep, m.editMode
	m.mu.Unlock()
	return renderLEDs(st, track, step, edit)
}

// flushLEDs sends only changed LEDs to the controller (diffing + batching)
func (m *Manager) flushLEDs() {
	m.ledMu.Lock()
	defer m.ledMu.Unlock()
	if m.controller == nil {
		return
	}

	newLEDs := m.RenderLEDs()
	newMap := make(map[[2]int]LEDState, len(newLEDs))
	var updates []midi.LEDUpdate

	for _, led := range newLEDs {
		key := [2]int{led.Row, led.Col}
		newMap[key] = led
		if prev, ok := m.prevLEDs[key]; !ok || prev != led {
			updates = append(updates, midi.LEDUpdate{
				Row:     led.Row,
				Col:     led.Col,
				Color:   led.Color,
				Channel: led.Channel,
			})
		}
	}

	// Clear LEDs that are no longer present
	for key := range m.prevLEDs {
		if _, ok := newMap[key]; !ok {
			updates = append(updates, midi.LEDUpdate{Row: key[0], Col: key[1]})
		}
	}

	if len(updates) > 0 {
		if err := m.controller.SetLEDBatch(updates); err != nil {
			debug.Warn("led", "batch of %d failed: %v", len(updates), err)
		}
	}
	m.prevLEDs = newMap
}

// notifyUpdate refreshes LEDs and notifies TUI
func (m *Manager) notifyUpdate() {
	m.ledDirty.Store(true)
	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}

// SetStep turns one cell on or off
func (m *Manager) SetStep(track, step int, active bool) {
	m.mu.Lock()
	m.core.SetStep(track, step, active)
	m.mu.Unlock()
	m.notifyUpdate()
}

// ToggleStep flips one cell and returns its new value. Out-of-range
// cells are ignored and report false.
func (m *Manager) ToggleStep(track, step int) bool {
	m.mu.Lock()
	on := m.toggle(track, step)
	m.mu.Unlock()
	m.notifyUpdate()
	return on
}

func (m *Manager) toggle(track, step int) bool {
	if track < 0 || track >= Tracks || step < 0 || step >= Steps {
		return false
	}
	on := !m.core.Step(track, step)
	m.core.SetStep(track, step, on)
	return on
}

// ClearTrack turns off every step of a track
func (m *Manager) ClearTrack(track int) {
	m.mu.Lock()
	for s := 0; s < Steps; s++ {
		m.core.SetStep(track, s, false)
	}
	m.mu.Unlock()
	m.notifyUpdate()
}

// SetBPM sets the tempo, clamped to the allowed range
func (m *Manager) SetBPM(bpm int) {
	m.mu.Lock()
	m.core.SetBPM(bpm)
	m.mu.Unlock()
	m.notifyUpdate()
}

// NudgeBPM changes the tempo by delta
func (m *Manager) NudgeBPM(delta int) {
	m.mu.Lock()
	m.core.SetBPM(int(m.core.BPM()) + delta)
	m.mu.Unlock()
	m.notifyUpdate()
}

// SetPlaying starts or pauses playback
func (m *Manager) SetPlaying(p bool) {
	m.mu.Lock()
	m.core.SetPlaying(p)
	m.mu.Unlock()
	m.notifyUpdate()
}

// TogglePlaying flips the transport
func (m *Manager) TogglePlaying() {
	m.mu.Lock()
	m.core.SetPlaying(!m.core.Playing())
	m.mu.Unlock()
	m.notifyUpdate()
}

// Playing reports the transport state
func (m *Manager) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.core.Playing()
}

// CurrentStep returns the step under the playhead
func (m *Manager) CurrentStep() uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.core.CurrentStep()
}

// Snapshot returns the current state with a fresh playhead
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.core.CurrentStep()
	return m.core.Snapshot()
}

// Voices returns the per-track timbres
func (m *Manager) Voices() [Tracks]Voice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.core.Voices()
}

// Kit returns the name of the active kit
func (m *Manager) Kit() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kit
}

// SetKit switches voices to a named kit
func (m *Manager) SetKit(name string) error {
	kit, ok := Kits[name]
	if !ok {
		return fmt.Errorf("unknown kit %q", name)
	}
	m.mu.Lock()
	m.kit = name
	m.core.SetVoices(kit.Voices)
	m.mu.Unlock()
	m.notifyUpdate()
	return nil
}

// Cursor returns the edit cursor position
func (m *Manager) Cursor() (track, step int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectedTrack, m.selectedStep
}

// EditMode reports whether the encoder moves the cursor (true) or
// changes tempo (false)
func (m *Manager) EditMode() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.editMode
}

// SetEditMode switches the encoder between cursor and tempo
func (m *Manager) SetEditMode(on bool) {
	m.mu.Lock()
	m.editMode = on
	m.mu.Unlock()
	m.notifyUpdate()
}

// moveCursor walks the cursor through the grid in reading order, wrapping
// from the end of a track to the start of the next and from the last
// track back to the first
func (m *Manager) moveCursor(delta int) {
	const cells = Tracks * Steps
	pos := (m.selectedTrack*Steps + m.selectedStep + delta) % cells
	if pos < 0 {
		pos += cells
	}
	m.selectedTrack, m.selectedStep = pos/Steps, pos%Steps
}

func (m *Manager) moveTrack(delta int) {
	m.selectedTrack = ((m.selectedTrack+delta)%Tracks + Tracks) % Tracks
}

// HandleEncoder applies a rotary encoder turn
func (m *Manager) HandleEncoder(delta int) {
	if delta == 0 {
		return
	}
	m.mu.Lock()
	if m.editMode {
		m.moveCursor(delta)
	} else {
		m.core.SetBPM(int(m.core.BPM()) + delta)
	}
	m.mu.Unlock()
	m.notifyUpdate()
}

// HandleButton applies an encoder button press: toggle the cell under the
// cursor in edit mode (auditioning it when it turns on), play/pause
// otherwise
func (m *Manager) HandleButton() {
	m.mu.Lock()
	if m.editMode {
		if m.toggle(m.selectedTrack, m.selectedStep) {
			m.core.Audition(m.selectedTrack)
		}
	} else {
		m.core.SetPlaying(!m.core.Playing())
	}
	m.mu.Unlock()
	m.notifyUpdate()
}

// HandleKey applies a TUI key press and reports whether it was used
func (m *Manager) HandleKey(key string) bool {
	switch key {
	case "h", "left":
		m.withCursor(func() { m.moveCursor(-1) })
	case "l", "right":
		m.withCursor(func() { m.moveCursor(1) })
	case "k", "up":
		m.withCursor(func() { m.moveTrack(-1) })
	case "j", "down":
		m.withCursor(func() { m.moveTrack(1) })
	case " ", "space", "enter":
		m.HandleButton()
	case "e":
		m.SetEditMode(!m.EditMode())
	case "c":
		track, _ := m.Cursor()
		m.ClearTrack(track)
	case "p":
		m.TogglePlaying()
	case "+", "=":
		m.NudgeBPM(5)
	case "-", "_":
		m.NudgeBPM(-5)
	default:
		return false
	}
	return true
}

func (m *Manager) withCursor(fn func()) {
	m.mu.Lock()
	fn()
	m.mu.Unlock()
	m.notifyUpdate()
}

// HandlePad applies a Launchpad press. The grid holds two rows per track,
// the scene column selects a track, the top row has the transport.
func (m *Manager) HandlePad(row, col int) {
	switch {
	case row == 8:
		switch col {
		case padPlay:
			m.TogglePlaying()
		case padTempoDown:
			m.NudgeBPM(-1)
		case padTempoUp:
			m.NudgeBPM(1)
		case padEdit:
			m.SetEditMode(!m.EditMode())
		case padClear:
			track, _ := m.Cursor()
			m.ClearTrack(track)
		}
	case row < 0 || row > 7 || col < 0 || col > 8:
		return
	case col == 8:
		m.withCursor(func() { m.selectedTrack = (7 - row) / 2 })
	default:
		track, step := cellFor(row, col)
		m.mu.Lock()
		m.selectedTrack, m.selectedStep = track, step
		if m.toggle(track, step) {
			m.core.Audition(track)
		}
		m.mu.Unlock()
		m.notifyUpdate()
	}
}

// HandleNote auditions the track a keyboard note maps to
func (m *Manager) HandleNote(note, velocity uint8) {
	if velocity == 0 {
		return
	}
	m.mu.Lock()
	m.core.Audition(int(note) % Tracks)
	m.mu.Unlock()
}

// LoadPattern applies a pattern cell by cell. Cells that already match
// submit nothing.
func (m *Manager) LoadPattern(p Pattern) error {
	grid, err := p.Grid()
	if err != nil {
		return err
	}
	var kit *Kit
	if p.Kit != "" {
		k, ok := Kits[p.Kit]
		if !ok {
			return fmt.Errorf("pattern %q: unknown kit %q", p.Name, p.Kit)
		}
		kit = &k
	}

	m.mu.Lock()
	if kit != nil && p.Kit != m.kit {
		m.kit = p.Kit
		m.core.SetVoices(kit.Voices)
	}
	for t := 0; t < Tracks; t++ {
		for s := 0; s < Steps; s++ {
			m.core.SetStep(t, s, grid[t][s])
		}
	}
	if p.BPM > 0 {
		m.core.SetBPM(p.BPM)
	}
	m.mu.Unlock()

	debug.Log("pattern", "loaded %q", p.Name)
	m.notifyUpdate()
	return nil
}

// Pattern returns the current grid as a named pattern
func (m *Manager) Pattern(name string) Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	return PatternFromGrid(name, int(m.core.BPM()), m.kit, m.core.Grid())
}

// HelpLayout returns the Launchpad layout for the current voices
func (m *Manager) HelpLayout() widgets.LaunchpadLayout {
	return HelpLayout(m.Voices())
}
