package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"catisim/internal/config"
	"catisim/internal/logging"
	"catisim/internal/power"
	"catisim/internal/scenario"
	"catisim/internal/sim"
	"catisim/internal/study"
)

var (
	swConfigPath string
	swSchemaPath string
	swOutput     string
	swLogFile    string
	swCSVPrefix  string
	swDesign     string
	swDesignFile string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a multi-arm study design",
	Long:  "sweep runs every arm of a study design through the simulate and power stages. Arms share the base seed, so they differ only by their overrides.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(swConfigPath, swSchemaPath)
		if err != nil {
			return err
		}

		design, err := loadDesign()
		if err != nil {
			return err
		}

		writer, ringWriter, cleanup, err := newWriters(cfg, swOutput, swLogFile, swCSVPrefix)
		if err != nil {
			return err
		}
		defer cleanup()

		id := studyID()
		log := logging.ForStudy(id).With("design", design.Name)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		for _, arm := range design.Arms {
			armCfg := arm.Apply(cfg)
			armID := id + "-" + arm.Name
			armLog := log.With("arm", arm.Name)

			simulator := sim.NewSimulator(armID, armCfg, writer, ringWriter, armLog)
			if err := simulator.Run(ctx); err != nil {
				return fmt.Errorf("arm %s: %w", arm.Name, err)
			}

			simulator.SetPhase(study.PhaseEstimating)
			engine := power.NewEngine(armID, armCfg, nil, armLog)
			rows, err := engine.Run(ctx, arm.Name, simulator.Rings(), sim.PowerRand(armCfg.Seed))
			if err != nil {
				return fmt.Errorf("arm %s: %w", arm.Name, err)
			}
			if err := simulator.EmitPower(rows); err != nil {
				return fmt.Errorf("arm %s: %w", arm.Name, err)
			}
		}
		return nil
	},
}

func loadDesign() (*scenario.Design, error) {
	if swDesignFile != "" {
		return scenario.Load(swDesignFile)
	}
	designs := scenario.BuiltIn()
	if d, ok := designs[swDesign]; ok {
		return &d, nil
	}
	names := make([]string, 0, len(designs))
	for name := range designs {
		names = append(names, name)
	}
	sort.Strings(names)
	return nil, fmt.Errorf("unknown design %q (built-ins: %s)", swDesign, strings.Join(names, ", "))
}

func init() {
	sweepCmd.Flags().StringVar(&swConfigPath, "config", "config/study.yaml", "Path to study configuration YAML")
	sweepCmd.Flags().StringVar(&swSchemaPath, "schema", "schemas/study.cue", "Path to CUE schema file")
	sweepCmd.Flags().StringVar(&swOutput, "output", "auto", "Row output: auto, json, color, tui, or greptime")
	sweepCmd.Flags().StringVar(&swLogFile, "log-file", "", "Path to export case logs (JSONL); ring, power, and state logs get derived names")
	sweepCmd.Flags().StringVar(&swCSVPrefix, "csv", "", "Prefix for CSV exports of the case, ring, and power tables")
	sweepCmd.Flags().StringVar(&swDesign, "design", "coverage", "Built-in design name")
	sweepCmd.Flags().StringVar(&swDesignFile, "design-file", "", "Path to a YAML design (overrides --design)")
}
