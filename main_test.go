package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"seqbox/config"
	"seqbox/midi"
	"seqbox/sequencer"
	"seqbox/synth"
)

func TestRenderBarsLength(t *testing.T) {
	tests := []struct {
		bpm, bars int
		frames    int
	}{
		{120, 1, 96000},
		{120, 4, 384000},
		{60, 1, 192000},
		{300, 1, 38400},
	}
	for _, tt := range tests {
		got := renderBars(synth.NewEngine(), tt.bpm, tt.bars)
		if len(got) != tt.frames*synth.Channels {
			t.Errorf("%d bars at %d bpm: %d samples, want %d", tt.bars, tt.bpm, len(got), tt.frames*synth.Channels)
		}
	}
}

func TestResolvePattern(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	p, err := resolvePattern("")
	if err != nil || p != nil {
		t.Errorf("empty name = %v, %v", p, err)
	}

	p, err = resolvePattern("default")
	if err != nil || p == nil || p.Tracks[0] != sequencer.DefaultPattern().Tracks[0] {
		t.Errorf("default = %v, %v", p, err)
	}

	if _, err := resolvePattern("nope"); err == nil {
		t.Error("expected error for unknown pattern")
	}

	saved := sequencer.Pattern{Name: "mine", BPM: 90, Tracks: []string{"x..............."}}
	if _, err := sequencer.SavePattern(saved); err != nil {
		t.Fatal(err)
	}
	p, err = resolvePattern("mine")
	if err != nil || p.BPM != 90 {
		t.Errorf("stored pattern = %v, %v", p, err)
	}

	path := filepath.Join(t.TempDir(), "file.json")
	os.WriteFile(path, []byte(`{"bpm":77,"tracks":["...x............"]}`), 0644)
	p, err = resolvePattern(path)
	if err != nil || p.BPM != 77 || p.Name != "file" {
		t.Errorf("file pattern = %v, %v", p, err)
	}
}

func TestNewSession(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := config.DefaultConfig()
	cfg.Sequencer.BPM = 100

	s, err := newSession(cfg)
	if err != nil {
		t.Fatal(err)
	}
	st := s.manager.Snapshot()
	if !st.Grid[0][0] || !st.Grid[1][4] {
		t.Error("default pattern not loaded")
	}
	// the default pattern carries its own tempo
	if st.BPM != sequencer.DefaultBPM || !st.Playing {
		t.Errorf("state = %+v", st)
	}
	if s.pattern != "default" {
		t.Errorf("pattern name = %q", s.pattern)
	}

	// bar hook counts once per bar of engine ticks
	s.engine.AdvanceTicks(2 * sequencer.BarTicks)
	if s.bars.Load() != 2 {
		t.Errorf("bars = %d", s.bars.Load())
	}

	cfg.Sequencer.Kit = "tuba"
	if _, err := newSession(cfg); err == nil {
		t.Error("expected error for unknown kit")
	}
}

func TestKeyboardPorts(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AddController(config.ControllerConfig{PortName: "Keys", Type: config.ControllerKeyboard, AutoConnect: true, InputChannel: 10})
	cfg.AddController(config.ControllerConfig{PortName: "Off", Type: config.ControllerKeyboard})

	got := keyboardPorts(cfg)
	if len(got) != 1 || got[0] != (midi.KeyboardPort{PortName: "Keys", Channel: 10}) {
		t.Errorf("keyboard ports = %+v", got)
	}
}

func TestPrintPorts(t *testing.T) {
	var buf bytes.Buffer
	printPorts(&buf, midi.Ports{})
	out := buf.String()
	if strings.Count(out, "(none)") != 2 {
		t.Errorf("output = %q", out)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	configPath = filepath.Join(dir, "config.json")
	t.Cleanup(func() { configPath, patternFlag, kitFlag, debugFlag, bpmFlag = "", "", "", false, 0 })

	os.WriteFile(configPath, []byte(`{"sequencer":{"bpm":90,"kit":"noise"}}`), 0644)

	cmd := renderCmd
	if err := cmd.ParseFlags([]string{"--bpm", "150", "--pattern", "groove", "--debug"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sequencer.BPM != 150 || cfg.Sequencer.Pattern != "groove" || cfg.Sequencer.Kit != "noise" {
		t.Errorf("sequencer = %+v", cfg.Sequencer)
	}
	if !cfg.Log.Enabled || cfg.Log.Level != "debug" {
		t.Errorf("log = %+v", cfg.Log)
	}
}
