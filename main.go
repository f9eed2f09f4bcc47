// Command seqbox is a four-track step sequencer with a built-in drum synth
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"

	"seqbox/config"
	"seqbox/debug"
	"seqbox/sequencer"
	"seqbox/synth"
)

var (
	configPath  string
	bpmFlag     int
	patternFlag string
	kitFlag     string
	debugFlag   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "seqbox",
	Short: "Four-track step sequencer and drum synth",
	Long: `seqbox plays a 4x16 step grid through a small synth engine.

Edit from the terminal, a Launchpad X or over HTTP.

Examples:
  seqbox                      # same as seqbox play
  seqbox play --pattern four-floor --bpm 128
  seqbox serve --addr :8077
  seqbox render --bars 8 -o beat.wav
  seqbox ports`,
	SilenceUsage: true,
	RunE:         runPlay,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ~/.config/seqbox/config.json)")
	pf.IntVar(&bpmFlag, "bpm", 0, "tempo, 40-300 (overrides config and pattern)")
	pf.StringVar(&patternFlag, "pattern", "", "pattern name in the store or a .yaml/.json file")
	pf.StringVar(&kitFlag, "kit", "", "voice kit: "+strings.Join(sequencer.KitNames(), ", "))
	pf.BoolVar(&debugFlag, "debug", false, "write a debug log")

	rootCmd.AddCommand(playCmd, serveCmd, renderCmd, portsCmd, patternsCmd)
}

// loadConfig reads the config file and applies command-line overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("bpm") {
		cfg.Sequencer.BPM = bpmFlag
	}
	if patternFlag != "" {
		cfg.Sequencer.Pattern = patternFlag
	}
	if kitFlag != "" {
		cfg.Sequencer.Kit = kitFlag
	}
	if debugFlag {
		cfg.Log.Enabled = true
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// saveConfig writes cfg back where it was read from
func saveConfig(cfg *config.Config) error {
	if configPath != "" {
		return cfg.SaveFile(configPath)
	}
	return cfg.Save()
}

func setupLogging(cfg *config.Config) error {
	if !cfg.Log.Enabled {
		return nil
	}
	path := cfg.Log.Path
	if path == "" {
		path = debug.DefaultPath()
	}
	if err := debug.Enable(path, cfg.Log.Level); err != nil {
		return fmt.Errorf("enable debug log: %w", err)
	}
	return nil
}

// session is the engine and sequencer shared by every command
type session struct {
	cfg     *config.Config
	engine  *synth.Engine
	core    *sequencer.Core
	manager *sequencer.Manager
	pattern string

	bars atomic.Uint64
}

func newSession(cfg *config.Config) (*session, error) {
	s := &session{cfg: cfg}

	// the tick hook runs on the render goroutine; keep it to one atomic
	s.engine = synth.NewEngine(synth.WithTickHook(func(tick uint32) {
		if tick%sequencer.BarTicks == 0 {
			s.bars.Add(1)
		}
	}))

	opts := []sequencer.Option{sequencer.WithPlaying(cfg.Sequencer.Playing)}
	if cfg.Sequencer.BPM > 0 {
		opts = append(opts, sequencer.WithBPM(cfg.Sequencer.BPM))
	}
	s.core = sequencer.NewCore(s.engine, s.engine, opts...)
	s.core.Init()
	s.manager = sequencer.NewManager(s.core)

	if kit := cfg.Sequencer.Kit; kit != "" {
		if err := s.manager.SetKit(kit); err != nil {
			return nil, err
		}
	}

	p, err := resolvePattern(cfg.Sequencer.Pattern)
	if err != nil {
		return nil, err
	}
	if p != nil {
		// the pattern's own kit only applies when none was asked for
		if kitFlag != "" {
			p.Kit = ""
		}
		if err := s.manager.LoadPattern(*p); err != nil {
			return nil, err
		}
		s.pattern = p.Name
	}
	if bpmFlag > 0 {
		s.manager.SetBPM(bpmFlag)
	}
	return s, nil
}

// resolvePattern finds a pattern by file path or store name. The name
// "default" falls back to the built-in pattern when nothing is stored
// under it.
func resolvePattern(name string) (*sequencer.Pattern, error) {
	if name == "" {
		return nil, nil
	}

	path := name
	if ext := filepath.Ext(name); ext == "" {
		found, err := sequencer.FindPattern(name)
		switch {
		case errors.Is(err, sequencer.ErrPatternNotFound) && name == "default":
			p := sequencer.DefaultPattern()
			return &p, nil
		case err != nil:
			return nil, err
		}
		path = found
	}

	p, err := sequencer.LoadPatternFile(path)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
