package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"seqbox/audio"
	"seqbox/debug"
	"seqbox/sequencer"
	"seqbox/synth"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render bars of the pattern to a WAV file",
	RunE:  runRender,
}

var (
	barsFlag   int
	outputFlag string
)

func init() {
	renderCmd.Flags().IntVar(&barsFlag, "bars", 4, "number of bars to render")
	renderCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "output file (default <pattern>.wav)")
}

func runRender(cmd *cobra.Command, args []string) error {
	if barsFlag < 1 {
		return fmt.Errorf("--bars must be at least 1")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}
	defer debug.Disable()

	cfg.Sequencer.Playing = true
	s, err := newSession(cfg)
	if err != nil {
		return err
	}

	out := outputFlag
	if out == "" {
		name := s.pattern
		if name == "" {
			name = "seqbox"
		}
		out = name + ".wav"
	}

	samples := renderBars(s.engine, int(s.core.BPM()), barsFlag)
	if err := audio.WriteWAV(out, samples, synth.SampleRate); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bars at %d bpm to %s\n", barsFlag, s.core.BPM(), out)
	return nil
}

// renderBars pulls blocks from src until bars bars of audio at bpm exist,
// trimmed to the exact frame count
func renderBars(src audio.BlockSource, bpm, bars int) []int16 {
	beats := bars * sequencer.BarTicks / synth.PPQ
	frames := beats * 60 * synth.SampleRate / bpm
	samples := make([]int16, 0, frames*synth.Channels+synth.BlockSize*synth.Channels)
	for len(samples) < frames*synth.Channels {
		samples = append(samples, src.Render()...)
	}
	debug.Log("render", "offline render: %d bars, %d frames", bars, frames)
	return samples[:frames*synth.Channels]
}
