package theme

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testGPL = `GIMP Palette
Name: test
Columns: 2
# comment
  0   0   0	black
255 255 255	white
300 0 0	out of range
oops
`

func TestParseGPL(t *testing.T) {
	p, err := ParseGPL(strings.NewReader(testGPL))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "test" || len(p.Colors) != 2 {
		t.Fatalf("palette = %+v", p)
	}
	if p.Colors[1] != (RGB{255, 255, 255}) {
		t.Errorf("second color = %v", p.Colors[1])
	}

	if _, err := ParseGPL(strings.NewReader("GIMP Palette\n")); err == nil {
		t.Error("expected error for empty palette")
	}
}

func TestLoad(t *testing.T) {
	p, err := Load("")
	if err != nil || p.Name != "plasma" {
		t.Fatalf("Load(\"\") = %v, %v", p, err)
	}

	path := filepath.Join(t.TempDir(), "p.gpl")
	if err := os.WriteFile(path, []byte(testGPL), 0644); err != nil {
		t.Fatal(err)
	}
	if p, err := Load(path); err != nil || p.Name != "test" {
		t.Errorf("Load(file) = %v, %v", p, err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.gpl")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLookup(t *testing.T) {
	p := &Palette{Colors: []RGB{{0, 0, 0}, {200, 100, 50}}}
	tests := []struct {
		norm float64
		want RGB
	}{
		{-1, RGB{0, 0, 0}},
		{0, RGB{0, 0, 0}},
		{0.5, RGB{100, 50, 25}},
		{1, RGB{200, 100, 50}},
		{2, RGB{200, 100, 50}},
	}
	for _, tt := range tests {
		if got := p.Lookup(tt.norm); got != tt.want {
			t.Errorf("Lookup(%v) = %v, want %v", tt.norm, got, tt.want)
		}
	}

	single := &Palette{Colors: []RGB{{1, 2, 3}}}
	if got := single.Lookup(0.5); got != (RGB{1, 2, 3}) {
		t.Errorf("single color lookup = %v", got)
	}
}

func TestStepSymbols(t *testing.T) {
	s := New(nil).Symbols
	tests := []struct {
		active, playhead, cursor bool
		want                     rune
	}{
		{false, false, false, '·'},
		{true, false, false, '●'},
		{true, true, false, '▶'},
		{false, false, true, '○'},
		{true, false, true, '◉'},
		{false, true, true, '▷'},
	}
	for _, tt := range tests {
		if got := s.Step(tt.active, tt.playhead, tt.cursor); got != tt.want {
			t.Errorf("Step(%v,%v,%v) = %c, want %c", tt.active, tt.playhead, tt.cursor, got, tt.want)
		}
	}
}
