package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"seqbox/midi"
	"seqbox/sequencer"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "(waiting up to %v...)\n", midi.PortTimeout)
		ports, err := midi.ListPorts(midi.PortTimeout)
		if err != nil {
			return err
		}
		printPorts(cmd.OutOrStdout(), ports)
		return nil
	},
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List saved patterns",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := sequencer.PatternsDir()
		if err != nil {
			return err
		}
		names, err := sequencer.ListPatterns()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s\n", dir)
		if len(names) == 0 {
			fmt.Fprintln(w, "  (none, press s in the UI to save one)")
		}
		for _, n := range names {
			fmt.Fprintf(w, "  %s\n", n)
		}
		return nil
	},
}

func printPorts(w io.Writer, ports midi.Ports) {
	fmt.Fprintln(w, "=== MIDI Input Ports ===")
	if len(ports.In) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, p := range ports.In {
		mark := ""
		if midi.IsLaunchpad(p.String()) {
			mark = "  <- Launchpad"
		}
		fmt.Fprintf(w, "  [%d] %s%s\n", i, p.String(), mark)
	}

	fmt.Fprintln(w, "\n=== MIDI Output Ports ===")
	if len(ports.Out) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, p := range ports.Out {
		fmt.Fprintf(w, "  [%d] %s\n", i, p.String())
	}
}
