package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Grid states (no cursor)
	StepEmpty    rune // · inactive step
	StepActive   rune // ● has hit
	StepPlayhead rune // ▶ current playing

	// Grid states (with cursor)
	CursorEmpty    rune // ○ cursor on empty
	CursorActive   rune // ◉ cursor on active
	CursorPlayhead rune // ▷ cursor on playhead

	Bar rune // │ between beats
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = Default()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			StepEmpty:    '·',
			StepActive:   '●',
			StepPlayhead: '▶',

			CursorEmpty:    '○',
			CursorActive:   '◉',
			CursorPlayhead: '▷',

			Bar: '│',
		},
	}
}

// Step picks the grid symbol for a cell
func (s Symbols) Step(active, playhead, cursor bool) rune {
	switch {
	case playhead && cursor:
		return s.CursorPlayhead
	case playhead:
		return s.StepPlayhead
	case active && cursor:
		return s.CursorActive
	case active:
		return s.StepActive
	case cursor:
		return s.CursorEmpty
	}
	return s.StepEmpty
}

// Color roles mapped to palette positions (0-1)
const (
	RoleMuted   = 0.2
	RoleFG      = 0.5
	RoleAccent  = 0.6
	RoleCursor  = 0.7
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Cursor() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleCursor))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleWarning))
}

func (t *Theme) Success() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSuccess))
}

// Track spreads n tracks evenly over the upper half of the palette
func (t *Theme) Track(i, n int) lipgloss.Color {
	if n <= 1 {
		return t.Accent()
	}
	return rgbToLipgloss(t.Palette.Lookup(0.4 + 0.6*float64(i)/float64(n-1)))
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
