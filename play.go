package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"seqbox/audio"
	"seqbox/config"
	"seqbox/debug"
	"seqbox/midi"
	"seqbox/theme"
	"seqbox/tui"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Run the sequencer with the terminal UI (default)",
	RunE:  runPlay,
}

var noAudio bool

func init() {
	for _, c := range []*cobra.Command{rootCmd, playCmd, serveCmd} {
		c.Flags().BoolVar(&noAudio, "no-audio", false, "render without opening an audio device")
	}
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}
	defer debug.Disable()

	palette, err := theme.Load(cfg.UI.Palette)
	if err != nil {
		return err
	}

	s, err := newSession(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	pipeline, closeAudio := startAudio(ctx, g, s)
	defer closeAudio()

	g.Go(func() error {
		s.manager.Run(ctx)
		return nil
	})

	dm := midi.NewDeviceManager(keyboardPorts(cfg)...)
	g.Go(func() error {
		dm.Run(ctx)
		return nil
	})

	m := tui.NewModel(s.manager, dm, theme.New(palette))
	m.Status = pipeline.Status
	if s.pattern != "" {
		m.PatternName = s.pattern
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	_, runErr := p.Run()
	cancel()
	waitErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", runErr)
	}
	return waitErr
}

// startAudio runs the render scheduler and, unless disabled, plays the
// ring through the default audio device. The returned func closes the
// device.
func startAudio(ctx context.Context, g *errgroup.Group, s *session) (*audio.Pipeline, func()) {
	ring := audio.NewRing(audio.RingCapacity)
	sched := audio.NewScheduler(s.engine, ring)
	pipeline := &audio.Pipeline{Engine: s.engine, Ring: ring, Scheduler: sched}

	g.Go(func() error {
		sched.Run(ctx)
		return nil
	})

	if noAudio || !s.cfg.Audio.Output {
		debug.Log("render", "audio output disabled")
		return pipeline, func() {}
	}
	out, err := audio.NewOutput(ring, s.cfg.Audio.BufferSize)
	if err != nil {
		// keep rendering so the tick clock and API still work
		debug.Error("render", err, "no audio output")
		fmt.Fprintf(os.Stderr, "warning: %v; continuing without sound\n", err)
		return pipeline, func() {}
	}
	return pipeline, func() {
		if err := out.Close(); err != nil {
			debug.Error("render", err, "close output")
		}
	}
}

// keyboardPorts lists the configured audition keyboards to open
func keyboardPorts(cfg *config.Config) []midi.KeyboardPort {
	var ports []midi.KeyboardPort
	for _, c := range cfg.AutoConnectControllers() {
		if c.Type == config.ControllerKeyboard {
			ports = append(ports, midi.KeyboardPort{PortName: c.PortName, Channel: c.InputChannel})
		}
	}
	return ports
}
