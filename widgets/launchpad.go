package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PadConfig is what one pad does in the current layout
type PadConfig struct {
	Color   [3]uint8
	Tooltip string
}

// LaunchpadLayout describes a Launchpad X surface. Grid row 0 is the
// bottom row, as on the device.
type LaunchpadLayout struct {
	TopRow   [8]PadConfig
	Grid     [8][8]PadConfig
	RightCol [8]PadConfig
}

// Zone is a legend entry
type Zone struct {
	Name  string
	Color [3]uint8
	Desc  string
}

// RenderPad renders a single colored pad
func RenderPad(color [3]uint8) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render("■")
}

// RenderLaunchpad draws the layout: top row, then grid rows 7..0 with the
// scene column on the right. Each pad is two cells wide.
func RenderLaunchpad(layout LaunchpadLayout) string {
	var lines []string

	var top strings.Builder
	for col := 0; col < 8; col++ {
		top.WriteString(RenderPad(layout.TopRow[col].Color))
		top.WriteString(" ")
	}
	lines = append(lines, top.String())

	for row := 7; row >= 0; row-- {
		var line strings.Builder
		for col := 0; col < 8; col++ {
			line.WriteString(RenderPad(layout.Grid[row][col].Color))
			line.WriteString(" ")
		}
		line.WriteString(RenderPad(layout.RightCol[row].Color))
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// RenderLegend lists the layout's zones
func RenderLegend(zones []Zone) string {
	var lines []string
	for _, z := range zones {
		lines = append(lines, fmt.Sprintf("  %s %s - %s", RenderPad(z.Color), z.Name, z.Desc))
	}
	return strings.Join(lines, "\n")
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

// LaunchpadHelp renders a layout and maps mouse positions back to pads
type LaunchpadHelp struct {
	layout LaunchpadLayout
}

func NewLaunchpadHelp() *LaunchpadHelp {
	return &LaunchpadHelp{}
}

func (h *LaunchpadHelp) SetLayout(l LaunchpadLayout) {
	h.layout = l
}

func (h *LaunchpadHelp) View() string {
	return RenderLaunchpad(h.layout)
}

// HitTest returns the tooltip under a position relative to View's origin
func (h *LaunchpadHelp) HitTest(x, y int) (bool, string) {
	if x < 0 || y < 0 || x%2 != 0 {
		return false, ""
	}
	col := x / 2
	if y == 0 {
		if col < 8 {
			return tip(h.layout.TopRow[col])
		}
		return false, ""
	}
	row := 8 - y
	if row < 0 {
		return false, ""
	}
	switch {
	case col < 8:
		return tip(h.layout.Grid[row][col])
	case col == 8:
		return tip(h.layout.RightCol[row])
	}
	return false, ""
}

func tip(p PadConfig) (bool, string) {
	if p.Tooltip == "" {
		return false, ""
	}
	return true, p.Tooltip
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
