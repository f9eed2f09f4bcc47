package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"seqbox/api"
	"seqbox/audio"
	"seqbox/config"
	"seqbox/debug"
	"seqbox/midi"
	"seqbox/sequencer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run headless with the HTTP API",
	Long: `Run the sequencer and audio without the terminal UI. The grid is
controlled over HTTP and from any connected Launchpad.

  curl -X PUT localhost:8077/api/v1/steps/0/4 -d '{"active":true}'
  curl -X PUT localhost:8077/api/v1/bpm -d '{"bpm":128}'
  curl localhost:8077/api/v1/state`,
	RunE: runServe,
}

var addrFlag string

const statusInterval = 5 * time.Second

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (default from config, 127.0.0.1:8077)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addrFlag != "" {
		cfg.API.Addr = addrFlag
	}

	// no TUI: log to stderr unless a file was asked for
	if cfg.Log.Enabled {
		if err := setupLogging(cfg); err != nil {
			return err
		}
	} else if err := debug.EnableWriter(os.Stderr, "info"); err != nil {
		return err
	}
	defer debug.Disable()

	s, err := newSession(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
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
	g.Go(func() error {
		routeDevices(dm, s.manager, cfg)
		return nil
	})

	g.Go(func() error {
		logStatus(ctx, s, pipeline)
		return nil
	})

	srv := api.NewServer(s.manager, pipeline.Status)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, cfg.API.Addr)
	})

	debug.Log("api", "seqbox serving on http://%s", cfg.API.Addr)
	return g.Wait()
}

// routeDevices attaches controllers as they appear and remembers new ones
// in the config. It returns when the device manager closes its events.
func routeDevices(dm *midi.DeviceManager, mgr *sequencer.Manager, cfg *config.Config) {
	for ev := range dm.Events() {
		switch ev.Type {
		case midi.DeviceConnected:
			mgr.AttachController(ev.Controller)
			if ev.Controller.Type() == midi.ControllerLaunchpad && cfg.FindController(ev.ID) == nil {
				cfg.AddController(config.ControllerConfig{
					PortName:    ev.ID,
					Type:        config.ControllerLaunchpadX,
					AutoConnect: true,
				})
				if err := saveConfig(cfg); err != nil {
					debug.Error("ctrl", err, "remember %s", ev.ID)
				}
			}
		case midi.DeviceDisconnected:
			mgr.DetachController(ev.ID)
		}
	}
}

// logStatus reports the render pipeline periodically, like the idle loop
// of the hardware
func logStatus(ctx context.Context, s *session, p *audio.Pipeline) {
	t := time.NewTicker(statusInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := p.Status()
			debug.Log("render", "tick=%d hook=%d blocks=%d bars=%d ring=%d/%d underruns=%d truncated=%d",
				st.Engine.Tick, st.Engine.HookCalls, st.Engine.Blocks, s.bars.Load(),
				st.Ring.Available, st.Ring.Capacity, st.Ring.Underruns, st.Scheduler.Truncated)
		}
	}
}
