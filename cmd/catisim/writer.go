package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"catisim/internal/config"
	"catisim/internal/sim"
)

// newWriters sets up the row writers from the --output mode, the
// GREPTIMEDB_ENDPOINT env var, and the optional file exports. It returns the
// case and ring writers and a cleanup function closing any file-backed sinks.
func newWriters(cfg *config.StudyConfig, output, logFile, csvPrefix string) (sim.CaseWriter, sim.RingWriter, func(), error) {
	base, err := baseWriter(cfg, output)
	if err != nil {
		return nil, nil, nil, err
	}

	writers := []any{base}
	if logFile != "" {
		fw, err := sim.NewFileWriter(logFile, logFile+".rings", logFile+".power", logFile+".state")
		if err != nil {
			return nil, nil, nil, err
		}
		writers = append(writers, fw)
	}
	if csvPrefix != "" {
		cw, err := sim.NewCSVWriter(csvPrefix+"_cases.csv", csvPrefix+"_rings.csv", csvPrefix+"_power.csv")
		if err != nil {
			return nil, nil, nil, err
		}
		writers = append(writers, cw)
	}

	if len(writers) == 1 {
		cleanup := func() {
			if c, ok := base.(io.Closer); ok {
				c.Close()
			}
		}
		return base.(sim.CaseWriter), base.(sim.RingWriter), cleanup, nil
	}

	mw := sim.NewMultiWriter(writers...)
	return mw, mw, func() { mw.Close() }, nil
}

// baseWriter chooses the primary sink. Explicit modes win; auto prefers the
// database when an endpoint is configured and otherwise matches the terminal.
func baseWriter(cfg *config.StudyConfig, output string) (any, error) {
	switch output {
	case "json":
		return sim.NewJSONStdoutWriter(), nil
	case "color":
		return sim.NewColorStdoutWriter(cfg), nil
	case "tui":
		return sim.NewTUIWriter(cfg), nil
	case "greptime":
		return greptimeWriter()
	case "", "auto":
		if os.Getenv("GREPTIMEDB_ENDPOINT") != "" {
			return greptimeWriter()
		}
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return sim.NewColorStdoutWriter(cfg), nil
		}
		return sim.NewJSONStdoutWriter(), nil
	}
	return nil, fmt.Errorf("unknown output mode %q", output)
}

func greptimeWriter() (any, error) {
	endpoint := os.Getenv("GREPTIMEDB_ENDPOINT")
	if endpoint == "" {
		return nil, fmt.Errorf("GREPTIMEDB_ENDPOINT not set")
	}
	database := os.Getenv("GREPTIMEDB_DATABASE")
	if database == "" {
		database = "public"
	}
	return sim.NewGreptimeDBWriter(endpoint, database)
}

func studyID() string {
	if id := os.Getenv("STUDY_ID"); id != "" {
		return id
	}
	return "study-01"
}
