package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ControllerType identifies the kind of controller
type ControllerType string

const (
	ControllerLaunchpadX ControllerType = "launchpad-x"
	ControllerKeyboard   ControllerType = "keyboard"
)

// ControllerConfig defines a saved controller configuration
type ControllerConfig struct {
	PortName     string         `json:"portName"`
	Type         ControllerType `json:"type"`
	AutoConnect  bool           `json:"autoConnect"`
	InputChannel int            `json:"inputChannel,omitempty"` // for keyboards, 0 = omni
}

// SequencerConfig is the state the sequencer boots into
type SequencerConfig struct {
	BPM     int    `json:"bpm,omitempty"`
	Pattern string `json:"pattern,omitempty"` // name in the pattern store or a file path
	Kit     string `json:"kit,omitempty"`
	Playing bool   `json:"playing"`
}

// AudioConfig controls the host audio output
type AudioConfig struct {
	Output     bool `json:"output"`
	BufferSize int  `json:"bufferSize,omitempty"` // player buffer in bytes, 0 = driver default
}

// APIConfig controls the HTTP control surface
type APIConfig struct {
	Addr string `json:"addr,omitempty"`
}

// LogConfig controls the debug log
type LogConfig struct {
	Enabled bool   `json:"enabled"`
	Level   string `json:"level,omitempty"`
	Path    string `json:"path,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette string `json:"palette,omitempty"` // GIMP .gpl file, empty = built in
}

// Config is the main configuration structure
type Config struct {
	Controllers []ControllerConfig `json:"controllers,omitempty"`
	Sequencer   SequencerConfig    `json:"sequencer"`
	Audio       AudioConfig        `json:"audio"`
	API         APIConfig          `json:"api"`
	Log         LogConfig          `json:"log"`
	UI          UIConfig           `json:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Controllers: []ControllerConfig{
			{
				PortName:    "Launchpad X LPX MIDI",
				Type:        ControllerLaunchpadX,
				AutoConnect: true,
			},
		},
		Sequencer: SequencerConfig{
			BPM:     120,
			Pattern: "default",
			Kit:     "sine",
			Playing: true,
		},
		Audio: AudioConfig{
			Output: true,
		},
		API: APIConfig{
			Addr: "127.0.0.1:8077",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "seqbox"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a config file. Fields missing from the file keep their
// defaults; a missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to its default location
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// FindController finds a controller config by port name
func (c *Config) FindController(portName string) *ControllerConfig {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == portName {
			return &c.Controllers[i]
		}
	}
	return nil
}

// AddController adds or updates a controller config
func (c *Config) AddController(ctrl ControllerConfig) {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == ctrl.PortName {
			c.Controllers[i] = ctrl
			return
		}
	}
	c.Controllers = append(c.Controllers, ctrl)
}

// AutoConnectControllers returns controllers with autoConnect enabled
func (c *Config) AutoConnectControllers() []ControllerConfig {
	var result []ControllerConfig
	for _, ctrl := range c.Controllers {
		if ctrl.AutoConnect {
			result = append(result, ctrl)
		}
	}
	return result
}
