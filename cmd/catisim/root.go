package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "catisim",
	Short: "CATI ring study simulation toolkit",
	Long:  "catisim simulates case-area targeted intervention ring studies and estimates the power of candidate study sizes to detect the intervention effect.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(powerCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(replayCmd)
}
