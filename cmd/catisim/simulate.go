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
	"catisim/internal/sim"
)

var (
	simConfigPath string
	simSchemaPath string
	simOutput     string
	simLogFile    string
	simCSVPrefix  string
	simAdminAddr  string
	simStateEvery time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate one batch of rings",
	Long:  "simulate generates a ring batch and writes the case and ring tables, without the power stage.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(simConfigPath, simSchemaPath)
		if err != nil {
			return err
		}

		writer, ringWriter, cleanup, err := newWriters(cfg, simOutput, simLogFile, simCSVPrefix)
		if err != nil {
			return err
		}
		defer cleanup()

		id := studyID()
		log := logging.ForStudy(id)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		simulator := sim.NewSimulator(id, cfg, writer, ringWriter, log)

		if simAdminAddr != "" {
			srv := admin.NewServer(simulator)
			go func() {
				log.Info("admin API listening", "addr", simAdminAddr)
				if err := srv.Start(simAdminAddr); err != nil {
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
			simulator.RunStateEmitter(emitterCtx, simStateEvery)
			close(emitterDone)
		}()

		err = simulator.Run(ctx)
		stopEmitter()
		<-emitterDone
		return err
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simConfigPath, "config", "config/study.yaml", "Path to study configuration YAML")
	simulateCmd.Flags().StringVar(&simSchemaPath, "schema", "schemas/study.cue", "Path to CUE schema file")
	simulateCmd.Flags().StringVar(&simOutput, "output", "auto", "Row output: auto, json, color, tui, or greptime")
	simulateCmd.Flags().StringVar(&simLogFile, "log-file", "", "Path to export case logs (JSONL); ring, power, and state logs get derived names")
	simulateCmd.Flags().StringVar(&simCSVPrefix, "csv", "", "Prefix for CSV exports of the case, ring, and power tables")
	simulateCmd.Flags().StringVar(&simAdminAddr, "admin-addr", ":8080", "Admin API listen address (empty disables)")
	simulateCmd.Flags().DurationVar(&simStateEvery, "state-interval", 5*time.Second, "Progress row interval")
}
