package sim

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"catisim/internal/study"
)

func TestJSONStdoutWriterLines(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &JSONStdoutWriter{out: buf}

	if err := w.Write(study.CaseRow{StudyID: "s1", RingID: 3, CaseID: 2, ReportDay: 4.5}); err != nil {
		t.Fatalf("write case: %v", err)
	}
	if err := w.WriteRing(study.RingRow{StudyID: "s1", RingID: 3, Cases: 5, Surveillance: study.SurveillanceNextDay}); err != nil {
		t.Fatalf("write ring: %v", err)
	}
	if err := w.WritePower(study.PowerRow{StudyID: "s1", Arm: "baseline", SampleSize: 100, Power: 0.82}); err != nil {
		t.Fatalf("write power: %v", err)
	}
	if err := w.WriteState(study.RunStateRow{StudyID: "s1", RunID: "r1", Phase: study.PhaseSimulating}); err != nil {
		t.Fatalf("write state: %v", err)
	}
	if err := w.WriteRun(study.RunRow{RunID: "r1", StudyID: "s1", Seed: 42}); err != nil {
		t.Fatalf("write run: %v", err)
	}

	sc := bufio.NewScanner(buf)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 5 {
		t.Fatalf("expected 5 JSON lines, got %d", len(lines))
	}
	for i, l := range lines {
		if !json.Valid([]byte(l)) {
			t.Fatalf("line %d is not valid JSON: %q", i, l)
		}
	}

	var c study.CaseRow
	if err := json.Unmarshal([]byte(lines[0]), &c); err != nil {
		t.Fatalf("decode case line: %v", err)
	}
	if c.RingID != 3 || c.ReportDay != 4.5 {
		t.Fatalf("unexpected case line: %+v", c)
	}
}

func TestColorStdoutWriterOverviewOnce(t *testing.T) {
	cfg := simTestConfig(10)
	buf := &bytes.Buffer{}
	w := &ColorStdoutWriter{cfg: cfg, out: buf}

	row := study.CaseRow{StudyID: "s1", RingID: 1, CaseID: 0, OnsetDay: 0, ReportDay: 2, PostIntervention: false}
	if err := w.Write(row); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "Study Configuration:") || !strings.Contains(output, "Power Sweep:") {
		t.Fatalf("overview not printed: %q", output)
	}
	if !strings.Contains(output, "\x1b[") {
		t.Fatalf("expected color codes in output: %q", output)
	}

	buf.Reset()
	if err := w.Write(row); err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if strings.Contains(buf.String(), "Study Configuration:") {
		t.Fatalf("overview printed more than once")
	}
}

func TestColorStdoutWriterRowKinds(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &ColorStdoutWriter{out: buf}

	if err := w.WriteRing(study.RingRow{RingID: 4, Cases: 3, DelayBucket: study.BucketShort, Surveillance: study.SurveillanceSameDay}); err != nil {
		t.Fatalf("ring: %v", err)
	}
	if !strings.Contains(buf.String(), "RING") || !strings.Contains(buf.String(), "cases=3") {
		t.Fatalf("unexpected ring line: %q", buf.String())
	}

	buf.Reset()
	if err := w.WritePower(study.PowerRow{Arm: "baseline", SampleSize: 75, Power: 0.9, Converged: 9, Replicates: 10}); err != nil {
		t.Fatalf("power: %v", err)
	}
	if !strings.Contains(buf.String(), "POWER") || !strings.Contains(buf.String(), "n=75") {
		t.Fatalf("unexpected power line: %q", buf.String())
	}

	buf.Reset()
	if err := w.WriteState(study.RunStateRow{Phase: study.PhaseDone, RingsDone: 7, RingsTotal: 7}); err != nil {
		t.Fatalf("state: %v", err)
	}
	if !strings.Contains(buf.String(), "STATE") || !strings.Contains(buf.String(), "rings=7/7") {
		t.Fatalf("unexpected state line: %q", buf.String())
	}

	buf.Reset()
	if err := w.WriteRun(study.RunRow{RunID: "r9", Seed: 7}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(buf.String(), "RUN") || !strings.Contains(buf.String(), "seed=7") {
		t.Fatalf("unexpected run line: %q", buf.String())
	}
}
