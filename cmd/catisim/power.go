package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"catisim/internal/admin"
	"catisim/internal/config"
	"catisim/internal/logging"
	"catisim/internal/power"
	"catisim/internal/sim"
	"catisim/internal/study"
)

const defaultArm = "baseline"

var (
	pwConfigPath string
	pwSchemaPath string
	pwOutput     string
	pwLogFile    string
	pwCSVPrefix  string
	pwAdminAddr  string
	pwStateEvery time.Duration
)

var powerCmd = &cobra.Command{
	Use:   "power",
	Short: "Estimate power for the configured sample sizes",
	Long:  "power simulates a ring batch, then resamples it to estimate detection power for every configured sample size.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(pwConfigPath, pwSchemaPath)
		if err != nil {
			return err
		}

		writer, ringWriter, cleanup, err := newWriters(cfg, pwOutput, pwLogFile, pwCSVPrefix)
		if err != nil {
			return err
		}
		defer cleanup()

		id := studyID()
		log := logging.ForStudy(id)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		simulator := sim.NewSimulator(id, cfg, writer, ringWriter, log)

		if pwAdminAddr != "" {
			srv := admin.NewServer(simulator)
			go func() {
				log.Info("admin API listening", "addr", pwAdminAddr)
				if err := srv.Start(pwAdminAddr); err != nil {
					log.Error("admin server failed", "err", err)
				}
			}()
			if w, ok := writer.(sim.AdminStatusWriter); ok {
				w.SetAdminStatus(true)
			}
		}

		emitterCtx, stopEmitter := context.WithCancel(ctx)
		emitterDone := make(chan struct{})
		go func() {
			simulator.RunStateEmitter(emitterCtx, pwStateEvery)
			close(emitterDone)
		}()
		defer func() {
			stopEmitter()
			<-emitterDone
		}()

		if err := simulator.Run(ctx); err != nil {
			return err
		}

		simulator.SetPhase(study.PhaseEstimating)
		engine := power.NewEngine(id, cfg, nil, log)
		rows, err := engine.Run(ctx, defaultArm, simulator.Rings(), sim.PowerRand(cfg.Seed))
		if err != nil {
			return err
		}
		return simulator.EmitPower(rows)
	},
}

func init() {
	powerCmd.Flags().StringVar(&pwConfigPath, "config", "config/study.yaml", "Path to study configuration YAML")
	powerCmd.Flags().StringVar(&pwSchemaPath, "schema", "schemas/study.cue", "Path to CUE schema file")
	powerCmd.Flags().StringVar(&pwOutput, "output", "auto", "Row output: auto, json, color, tui, or greptime")
	powerCmd.Flags().StringVar(&pwLogFile, "log-file", "", "Path to export case logs (JSONL); ring, power, and state logs get derived names")
	powerCmd.Flags().StringVar(&pwCSVPrefix, "csv", "", "Prefix for CSV exports of the case, ring, and power tables")
	powerCmd.Flags().StringVar(&pwAdminAddr, "admin-addr", ":8080", "Admin API listen address (empty disables)")
	powerCmd.Flags().DurationVar(&pwStateEvery, "state-interval", 5*time.Second, "Progress row interval")
}
