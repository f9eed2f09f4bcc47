package sequencer

import (
	"testing"

	"seqbox/midi"
)

type fakeLaunchpad struct {
	batches [][]midi.LEDUpdate
}

func (f *fakeLaunchpad) ID() string { return "fake" }

func (f *fakeLaunchpad) Type() midi.ControllerType { return midi.ControllerLaunchpad }

func (f *fakeLaunchpad) PadEvents() <-chan midi.PadEvent { return nil }

func (f *fakeLaunchpad) NoteEvents() <-chan midi.NoteEvent { return nil }

func (f *fakeLaunchpad) SetLEDRGB(int, int, [3]uint8, uint8) error { return nil }

func (f *fakeLaunchpad) SetLEDBatch(u []midi.LEDUpdate) error {
	f.batches = append(f.batches, u)
	return nil
}

func (f *fakeLaunchpad) Close() error { return nil }

func newTestManager() (*Manager, *recorder, *fakeClock) {
	c, rec, clk := newTestCore()
	return NewManager(c), rec, clk
}

func TestEncoderMovesCursorInEditMode(t *testing.T) {
	m, _, _ := newTestManager()

	tests := []struct {
		delta     int
		wantTrack int
		wantStep  int
	}{
		{-1, 3, 15}, // wraps back to the last track
		{1, 0, 0},
		{15, 0, 15},
		{1, 1, 0}, // end of track moves to the next one
		{-1, 0, 15},
		{Tracks * Steps, 0, 15},
	}
	for i, tt := range tests {
		m.HandleEncoder(tt.delta)
		tr, st := m.Cursor()
		if tr != tt.wantTrack || st != tt.wantStep {
			t.Errorf("move %d (%+d): cursor = (%d,%d), want (%d,%d)", i, tt.delta, tr, st, tt.wantTrack, tt.wantStep)
		}
	}
}

func TestEncoderChangesTempoOutsideEditMode(t *testing.T) {
	m, rec, _ := newTestManager()
	m.SetEditMode(false)

	m.HandleEncoder(3)
	if got := m.Snapshot().BPM; got != DefaultBPM+3 {
		t.Errorf("bpm = %d", got)
	}
	m.HandleEncoder(1000)
	if got := m.Snapshot().BPM; got != MaxBPM {
		t.Errorf("bpm = %d, want clamp to %d", got, MaxBPM)
	}
	if n := len(rec.tempos()); n != 2 {
		t.Errorf("got %d tempo events, want 2", n)
	}
	m.HandleEncoder(0)
	if n := len(rec.tempos()); n != 2 {
		t.Error("zero delta submitted a tempo event")
	}
}

func TestButtonTogglesAndAuditions(t *testing.T) {
	m, rec, _ := newTestManager()
	m.HandleEncoder(5)

	m.HandleButton()
	if !m.Snapshot().Grid[0][5] {
		t.Fatal("cell not toggled on")
	}
	// bound pair plus one audition
	if len(rec.events) != 3 || rec.events[2].Sequence != nil {
		t.Errorf("events = %+v", rec.events)
	}

	rec.reset()
	m.HandleButton()
	if m.Snapshot().Grid[0][5] {
		t.Fatal("cell not toggled off")
	}
	if len(rec.events) != 2 {
		t.Errorf("turning off should only clear, got %d events", len(rec.events))
	}
}

func TestButtonTogglesPlayOutsideEditMode(t *testing.T) {
	m, _, _ := newTestManager()
	m.SetEditMode(false)
	m.HandleButton()
	if m.Playing() {
		t.Error("button did not pause")
	}
	m.HandleButton()
	if !m.Playing() {
		t.Error("button did not resume")
	}
}

func TestHandlePad(t *testing.T) {
	m, _, _ := newTestManager()

	cells := []struct {
		row, col    int
		track, step int
	}{
		{7, 0, 0, 0},
		{6, 3, 0, 11},
		{5, 7, 1, 7},
		{0, 7, 3, 15},
	}
	for _, c := range cells {
		m.HandlePad(c.row, c.col)
		if !m.Snapshot().Grid[c.track][c.step] {
			t.Errorf("pad (%d,%d) did not toggle (%d,%d)", c.row, c.col, c.track, c.step)
		}
		if tr, st := m.Cursor(); tr != c.track || st != c.step {
			t.Errorf("pad (%d,%d) cursor = (%d,%d)", c.row, c.col, tr, st)
		}
	}

	m.HandlePad(4, 8)
	if tr, _ := m.Cursor(); tr != 1 {
		t.Errorf("scene pad selected track %d, want 1", tr)
	}

	m.HandlePad(8, padPlay)
	if m.Playing() {
		t.Error("play pad did not pause")
	}
	m.HandlePad(8, padTempoUp)
	if m.Snapshot().BPM != DefaultBPM+1 {
		t.Error("tempo pad did not nudge")
	}

	m.HandlePad(8, padClear) // clears track 1
	if m.Snapshot().Grid[1][7] {
		t.Error("clear pad left track 1 populated")
	}

	before := m.Snapshot()
	m.HandlePad(9, 9)
	m.HandlePad(-1, 0)
	if m.Snapshot() != before {
		t.Error("off-surface pads changed state")
	}
}

func TestPadMappingRoundTrip(t *testing.T) {
	for tr := 0; tr < Tracks; tr++ {
		for s := 0; s < Steps; s++ {
			row, col := padFor(tr, s)
			if gt, gs := cellFor(row, col); gt != tr || gs != s {
				t.Errorf("(%d,%d) -> pad (%d,%d) -> (%d,%d)", tr, s, row, col, gt, gs)
			}
		}
	}
}

func TestHandleKey(t *testing.T) {
	m, _, _ := newTestManager()

	m.HandleKey("l")
	m.HandleKey("l")
	m.HandleKey("j")
	if tr, st := m.Cursor(); tr != 1 || st != 2 {
		t.Errorf("cursor = (%d,%d), want (1,2)", tr, st)
	}
	m.HandleKey("k")
	m.HandleKey("k")
	if tr, _ := m.Cursor(); tr != 3 {
		t.Errorf("track = %d, want wrap to 3", tr)
	}

	m.HandleKey(" ")
	if !m.Snapshot().Grid[3][2] {
		t.Error("space did not toggle")
	}
	m.HandleKey("c")
	if m.Snapshot().Grid[3][2] {
		t.Error("c did not clear the track")
	}

	m.HandleKey("+")
	if m.Snapshot().BPM != DefaultBPM+5 {
		t.Error("+ did not raise tempo by 5")
	}
	m.HandleKey("e")
	if m.EditMode() {
		t.Error("e did not leave edit mode")
	}
	m.HandleKey("p")
	if m.Playing() {
		t.Error("p did not pause")
	}
	if m.HandleKey("z") {
		t.Error("unknown key reported as handled")
	}
}

func TestHandleNoteAuditions(t *testing.T) {
	m, rec, _ := newTestManager()
	m.HandleNote(38, 100)
	m.HandleNote(38, 0)
	if len(rec.events) != 1 || rec.events[0].Osc != 38%Tracks {
		t.Errorf("events = %+v", rec.events)
	}
}

func TestLoadPattern(t *testing.T) {
	m, rec, _ := newTestManager()
	p := DefaultPattern()
	p.BPM = 96
	if err := m.LoadPattern(p); err != nil {
		t.Fatal(err)
	}
	st := m.Snapshot()
	if !st.Grid[0][0] || !st.Grid[1][4] || st.BPM != 96 {
		t.Errorf("state = %+v", st)
	}
	// 6 active cells, 2 events each, plus the tempo
	if len(rec.events) != 13 {
		t.Errorf("got %d events, want 13", len(rec.events))
	}

	rec.reset()
	if err := m.LoadPattern(p); err != nil {
		t.Fatal(err)
	}
	if len(rec.events) != 0 {
		t.Errorf("reloading the same pattern submitted %d events", len(rec.events))
	}

	if got := m.Pattern("out"); got.Tracks[0] != p.Tracks[0] || got.BPM != 96 {
		t.Errorf("Pattern() = %+v", got)
	}

	bad := Pattern{Tracks: []string{"x"}}
	if err := m.LoadPattern(bad); err == nil {
		t.Error("expected error for malformed pattern")
	}
	if err := m.LoadPattern(Pattern{Kit: "nope"}); err == nil {
		t.Error("expected error for unknown kit")
	}
}

func TestSetKit(t *testing.T) {
	m, _, _ := newTestManager()
	if err := m.SetKit("noise"); err != nil {
		t.Fatal(err)
	}
	if m.Kit() != "noise" || m.Voices()[2].Name != "CH" {
		t.Errorf("kit = %s", m.Kit())
	}
	if err := m.SetKit("nope"); err == nil {
		t.Error("expected error for unknown kit")
	}
}

func TestFlushLEDsDiffs(t *testing.T) {
	m, _, _ := newTestManager()
	m.SetPlaying(false) // keep the playhead out of the diff
	lp := &fakeLaunchpad{}
	m.SetController(lp)

	m.flushLEDs()
	if len(lp.batches) != 1 || len(lp.batches[0]) != len(m.RenderLEDs()) {
		t.Fatalf("first flush should paint everything, got %d batches", len(lp.batches))
	}

	m.flushLEDs()
	if len(lp.batches) != 1 {
		t.Fatal("unchanged state produced a batch")
	}

	m.SetStep(2, 9, true)
	m.flushLEDs()
	if len(lp.batches) != 2 || len(lp.batches[1]) != 1 {
		t.Fatalf("one toggled cell should send one update, got %v", lp.batches[len(lp.batches)-1])
	}
	u := lp.batches[1][0]
	if row, col := padFor(2, 9); u.Row != row || u.Col != col || u.Color != trackColors[2] {
		t.Errorf("update = %+v", u)
	}

	m.DetachController("fake")
	if m.Controller() != nil {
		t.Error("controller still attached")
	}
}

func TestRenderLEDsPlayhead(t *testing.T) {
	m, _, clk := newTestManager()
	clk.ticks = 3 * TicksPerStep
	var head *LEDState
	for _, led := range m.RenderLEDs() {
		if led.Channel == midi.ChannelPulse {
			l := led
			head = &l
			break
		}
	}
	if head == nil {
		t.Fatal("no playhead LED")
	}
	if row, col := padFor(0, 3); head.Row != row || head.Col != col {
		t.Errorf("playhead at (%d,%d)", head.Row, head.Col)
	}
}

func TestUpdateChanNotified(t *testing.T) {
	m, _, _ := newTestManager()
	m.ToggleStep(0, 1)
	select {
	case <-m.UpdateChan:
	default:
		t.Error("no update notification")
	}
}
