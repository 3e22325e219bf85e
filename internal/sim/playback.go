package sim

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"time"

	"catisim/internal/study"
)

// ReplayLog replays case rows from r to writer, pacing by report-day deltas.
// Speed is simulated days per wall-clock second; a speed <= 0 inserts no
// delay. Report days restart at each ring boundary, so only forward motion
// within a ring paces the stream.
func ReplayLog(r io.Reader, writer CaseWriter, speed float64) error {
	dec := json.NewDecoder(r)
	prev := math.NaN()
	for {
		var row study.CaseRow
		if err := dec.Decode(&row); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if diff := row.ReportDay - prev; diff > 0 && speed > 0 {
			time.Sleep(time.Duration(diff / speed * float64(time.Second)))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
		prev = row.ReportDay
	}
}

// ReplayLogFile opens a file and replays its case rows.
func ReplayLogFile(path string, writer CaseWriter, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReplayLog(f, writer, speed)
}
