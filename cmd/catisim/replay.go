package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"catisim/internal/sim"
)

var (
	replayInput  string
	replaySpeed  float64
	replayOutput string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a case log file",
	Long:  "replay feeds case rows from a JSONL log back into GreptimeDB or STDOUT, paced by their report days.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		if replayOutput == "tui" {
			return fmt.Errorf("tui output is not supported for replay")
		}
		writer, _, cleanup, err := newWriters(nil, replayOutput, "", "")
		if err != nil {
			return err
		}
		defer cleanup()
		return sim.ReplayLogFile(replayInput, writer, replaySpeed)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to case log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed in simulated days per second")
	replayCmd.Flags().StringVar(&replayOutput, "output", "auto", "Row output: auto, json, color, or greptime")
	replayCmd.MarkFlagRequired("input")
}
