package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"seqbox/audio"
	"seqbox/debug"
	"seqbox/midi"
	"seqbox/sequencer"
	"seqbox/theme"
	"seqbox/widgets"
)

const frameRate = 30

// layoutBounds holds cached layout info
type layoutBounds struct {
	lpHelpTop    int
	lpHelpHeight int
}

type keyMap struct {
	Move   key.Binding
	Track  key.Binding
	Toggle key.Binding
	Edit   key.Binding
	Clear  key.Binding
	Play   key.Binding
	Tempo  key.Binding
	Kit    key.Binding
	Save   key.Binding
	Quit   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Move:   key.NewBinding(key.WithKeys("h", "l", "left", "right"), key.WithHelp("h/l", "step")),
		Track:  key.NewBinding(key.WithKeys("j", "k", "up", "down"), key.WithHelp("j/k", "track")),
		Toggle: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "toggle")),
		Edit:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit mode")),
		Clear:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear track")),
		Play:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "play")),
		Tempo:  key.NewBinding(key.WithKeys("+", "=", "-", "_"), key.WithHelp("+/-", "tempo")),
		Kit:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next kit")),
		Save:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Move, k.Track, k.Toggle, k.Edit, k.Clear, k.Play, k.Tempo, k.Kit, k.Save, k.Quit}
}

type Model struct {
	Manager     *sequencer.Manager
	DeviceMgr   *midi.DeviceManager // may be nil
	Status      func() audio.Status // may be nil
	Theme       *theme.Theme
	PatternName string // used when saving

	keys     keyMap
	help     help.Model
	lpHelp   *widgets.LaunchpadHelp
	quitting bool
	tooltip  string
	message  string
	bounds   *layoutBounds
	lpID     string // current Launchpad, if any
}

type UpdateMsg struct{}

type tickMsg struct{}

type DeviceEventMsg midi.DeviceEvent

func NewModel(manager *sequencer.Manager, deviceMgr *midi.DeviceManager, th *theme.Theme) Model {
	lp := widgets.NewLaunchpadHelp()
	lp.SetLayout(manager.HelpLayout())
	if th == nil {
		th = theme.New(nil)
	}
	return Model{
		Manager:     manager,
		DeviceMgr:   deviceMgr,
		Theme:       th,
		PatternName: "untitled",
		keys:        defaultKeys(),
		help:        help.New(),
		lpHelp:      lp,
		bounds:      &layoutBounds{},
	}
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	if deviceMgr == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Manager),
		ListenForDevices(m.DeviceMgr),
		tick(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.message = ""
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Kit):
			m.nextKit()

		case key.Matches(msg, m.keys.Save):
			m.save()

		default:
			m.Manager.HandleKey(msg.String())
		}

	case tea.MouseMsg:
		m.tooltip = m.hitTest(msg.X, msg.Y)

	case UpdateMsg:
		return m, ListenForUpdates(m.Manager)

	case tickMsg:
		// playhead moves without manager updates
		return m, tick()

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		switch event.Type {
		case midi.DeviceConnected:
			m.Manager.AttachController(event.Controller)
			if event.Controller.Type() == midi.ControllerLaunchpad {
				m.lpID = event.ID
			}
		case midi.DeviceDisconnected:
			m.Manager.DetachController(event.ID)
			if event.ID == m.lpID {
				m.lpID = ""
			}
		}
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

func (m *Model) nextKit() {
	names := sequencer.KitNames()
	cur := m.Manager.Kit()
	next := names[0]
	for i, n := range names {
		if n == cur {
			next = names[(i+1)%len(names)]
			break
		}
	}
	if err := m.Manager.SetKit(next); err != nil {
		m.message = err.Error()
		return
	}
	m.lpHelp.SetLayout(m.Manager.HelpLayout())
	m.message = "kit: " + next
}

func (m *Model) save() {
	path, err := sequencer.SavePattern(m.Manager.Pattern(m.PatternName))
	if err != nil {
		debug.Error("pattern", err, "save %q", m.PatternName)
		m.message = "save failed: " + err.Error()
		return
	}
	m.message = "saved " + path
}

func (m Model) hitTest(x, y int) string {
	if y >= m.bounds.lpHelpTop && y < m.bounds.lpHelpTop+m.bounds.lpHelpHeight {
		if hit, tooltip := m.lpHelp.HitTest(x, y-m.bounds.lpHelpTop); hit {
			return tooltip
		}
	}
	return ""
}

// gridView draws one line per track with a bar separator every beat
func (m Model) gridView(st sequencer.State, voices [sequencer.Tracks]sequencer.Voice) string {
	sym := m.Theme.Symbols
	track, step := m.Manager.Cursor()
	edit := m.Manager.EditMode()

	cursorStyle := lipgloss.NewStyle().Foreground(m.Theme.Cursor())
	headStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())
	barStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())

	var out strings.Builder
	for t := 0; t < sequencer.Tracks; t++ {
		trackStyle := lipgloss.NewStyle().Foreground(m.Theme.Track(t, sequencer.Tracks))
		out.WriteString(trackStyle.Render(fmt.Sprintf("%-3s", voices[t].Name)))
		for s := 0; s < sequencer.Steps; s++ {
			if s%4 == 0 {
				out.WriteString(barStyle.Render(string(sym.Bar)))
			}
			isCursor := edit && t == track && s == step
			isHead := st.Playing && int(st.CurrentStep) == s
			char := string(sym.Step(st.Grid[t][s], isHead, isCursor))
			switch {
			case isCursor:
				char = cursorStyle.Render(char)
			case isHead:
				char = headStyle.Render(char)
			case st.Grid[t][s]:
				char = trackStyle.Render(char)
			}
			out.WriteString(char)
		}
		out.WriteString(barStyle.Render(string(sym.Bar)))
		out.WriteString("\n")
	}
	return out.String()
}

func (m Model) statusView() string {
	if m.Status == nil {
		return "audio: off"
	}
	s := m.Status()
	return fmt.Sprintf("ring %5d/%d  underruns %d  dropped %d  blocks %d  overruns %d  tick %d",
		s.Ring.Available, s.Ring.Capacity, s.Ring.Underruns, s.Ring.Dropped,
		s.Scheduler.Blocks, s.Scheduler.Overruns, s.Engine.Tick)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	st := m.Manager.Snapshot()
	voices := m.Manager.Voices()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	msgStyle := lipgloss.NewStyle().Foreground(m.Theme.Success())
	tooltipStyle := lipgloss.NewStyle().
		Foreground(m.Theme.FG()).
		Background(m.Theme.Muted()).
		Padding(0, 1)

	playState := "STOP"
	if st.Playing {
		playState = "PLAY"
	}
	mode := "tempo"
	if m.Manager.EditMode() {
		mode = "edit"
	}
	deviceStatus := ""
	if m.lpID != "" {
		deviceStatus = "  LP:X"
	}

	header := headerStyle.Render(fmt.Sprintf("seqbox  %s  %3dbpm  step:%02d  kit:%s  enc:%s%s",
		playState, st.BPM, st.CurrentStep+1, m.Manager.Kit(), mode, deviceStatus))

	grid := m.gridView(st, voices)
	status := dimStyle.Render(m.statusView())
	lpView := m.lpHelp.View()
	legend := widgets.RenderLegend(sequencer.HelpZones())
	helpLine := m.help.ShortHelpView(m.keys.ShortHelp())

	// header, blank, grid, blank, status, blank
	gridHeight := lipgloss.Height(strings.TrimSuffix(grid, "\n"))
	m.bounds.lpHelpTop = 1 + lipgloss.Height(header) + 1 + gridHeight + 1 + lipgloss.Height(status) + 1
	m.bounds.lpHelpHeight = lipgloss.Height(lpView)

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(grid)
	out.WriteString("\n")
	out.WriteString(status)
	out.WriteString("\n\n")
	out.WriteString(lpView)
	out.WriteString("\n")
	out.WriteString(legend)
	out.WriteString("\n\n")
	out.WriteString(helpLine)

	if m.message != "" {
		out.WriteString("\n")
		out.WriteString(msgStyle.Render(m.message))
	}
	if m.tooltip != "" {
		out.WriteString("\n")
		out.WriteString(tooltipStyle.Render(m.tooltip))
	}

	return out.String()
}
