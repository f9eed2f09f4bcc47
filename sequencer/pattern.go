package sequencer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrPatternNotFound is returned when no saved pattern matches a name
var ErrPatternNotFound = errors.New("pattern not found")

// Pattern is a saved grid. Each track row is one character per step:
// x for an active step, . for a rest. Spaces and | may separate beats.
type Pattern struct {
	Name   string   `yaml:"name" json:"name"`
	BPM    int      `yaml:"bpm,omitempty" json:"bpm,omitempty"`
	Kit    string   `yaml:"kit,omitempty" json:"kit,omitempty"`
	Tracks []string `yaml:"tracks" json:"tracks"`
}

// DefaultPattern is the beat loaded at boot: four on the floor plus a
// backbeat.
func DefaultPattern() Pattern {
	return Pattern{
		Name: "default",
		BPM:  DefaultBPM,
		Kit:  DefaultKit,
		Tracks: []string{
			"x...x...x...x...",
			"....x.......x...",
			"................",
			"................",
		},
	}
}

// PatternFromGrid converts a grid into its text form
func PatternFromGrid(name string, bpm int, kit string, g Grid) Pattern {
	p := Pattern{Name: name, BPM: bpm, Kit: kit}
	for t := 0; t < Tracks; t++ {
		var b strings.Builder
		for s := 0; s < Steps; s++ {
			if g[t][s] {
				b.WriteByte('x')
			} else {
				b.WriteByte('.')
			}
		}
		p.Tracks = append(p.Tracks, b.String())
	}
	return p
}

// Grid parses the track rows. Missing tracks are empty.
func (p Pattern) Grid() (Grid, error) {
	var g Grid
	if len(p.Tracks) > Tracks {
		return g, fmt.Errorf("pattern %q has %d tracks, max %d", p.Name, len(p.Tracks), Tracks)
	}
	for t, row := range p.Tracks {
		steps, err := parseRow(row)
		if err != nil {
			return g, fmt.Errorf("pattern %q track %d: %w", p.Name, t, err)
		}
		g[t] = steps
	}
	return g, nil
}

func parseRow(row string) ([Steps]bool, error) {
	var steps [Steps]bool
	n := 0
	for _, r := range row {
		switch r {
		case ' ', '|':
			continue
		case 'x', 'X', 'o', '1':
			if n < Steps {
				steps[n] = true
			}
		case '.', '-', '_', '0':
		default:
			return steps, fmt.Errorf("invalid step character %q", r)
		}
		n++
	}
	if n != Steps {
		return steps, fmt.Errorf("got %d steps, want %d", n, Steps)
	}
	return steps, nil
}

// DecodePattern parses a pattern from YAML, or JSON when the data looks
// like a JSON object
func DecodePattern(data []byte) (Pattern, error) {
	var p Pattern
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &p); err == nil {
			return p, validate(p)
		}
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode pattern: %w", err)
	}
	return p, validate(p)
}

func validate(p Pattern) error {
	_, err := p.Grid()
	return err
}

// EncodePattern renders a pattern as YAML
func EncodePattern(p Pattern) ([]byte, error) {
	return yaml.Marshal(p)
}

// LoadPatternFile reads a YAML or JSON pattern file
func LoadPatternFile(path string) (Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pattern{}, err
	}
	p, err := DecodePattern(data)
	if err != nil {
		return Pattern{}, fmt.Errorf("%s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// SavePatternFile writes a pattern as YAML, creating parent directories
func SavePatternFile(path string, p Pattern) error {
	if err := validate(p); err != nil {
		return err
	}
	data, err := EncodePattern(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// PatternsDir returns the pattern store directory
func PatternsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "seqbox", "patterns"), nil
}

// SavePattern stores a pattern under its name in the pattern store
func SavePattern(p Pattern) (string, error) {
	dir, err := PatternsDir()
	if err != nil {
		return "", err
	}
	name := p.Name
	if name == "" {
		name = "untitled"
	}
	path := filepath.Join(dir, sanitizeFilename(name)+".yaml")
	return path, SavePatternFile(path, p)
}

var patternExts = []string{".yaml", ".yml", ".json"}

// ListPatterns returns the names of all stored patterns
func ListPatterns() ([]string, error) {
	dir, err := PatternsDir()
	if err != nil {
		return nil, err
	}
	return listPatternsIn(dir)
}

func listPatternsIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		for _, e := range patternExts {
			if ext == e {
				names = append(names, strings.TrimSuffix(entry.Name(), ext))
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// FindPattern resolves a pattern argument: an existing file path, or the
// name of a pattern in the store
func FindPattern(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	dir, err := PatternsDir()
	if err != nil {
		return "", err
	}
	return findPatternIn(dir, name)
}

func findPatternIn(dir, name string) (string, error) {
	for _, ext := range patternExts {
		path := filepath.Join(dir, sanitizeFilename(name)+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%q: %w", name, ErrPatternNotFound)
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	r := strings.NewReplacer(
		" ", "-", "/", "-", "\\", "-", ":", "-",
		"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
	)
	return r.Replace(name)
}
