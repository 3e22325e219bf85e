package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"catisim/internal/study"
)

// JSONStdoutWriter prints study rows as JSON lines to STDOUT. A mutex keeps
// lines whole when the state emitter writes concurrently with the run.
type JSONStdoutWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

func (w *JSONStdoutWriter) emit(v any) {
	data, _ := json.Marshal(v)
	w.mu.Lock()
	fmt.Fprintln(w.out, string(data))
	w.mu.Unlock()
}

// Write outputs a case row in JSON format.
func (w *JSONStdoutWriter) Write(row study.CaseRow) error {
	w.emit(row)
	return nil
}

// WriteBatch outputs multiple case rows in JSON format.
func (w *JSONStdoutWriter) WriteBatch(rows []study.CaseRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteRing outputs a ring summary row in JSON format.
func (w *JSONStdoutWriter) WriteRing(row study.RingRow) error {
	w.emit(row)
	return nil
}

// WriteRings outputs multiple ring summary rows in JSON format.
func (w *JSONStdoutWriter) WriteRings(rows []study.RingRow) error {
	for _, r := range rows {
		_ = w.WriteRing(r)
	}
	return nil
}

// WritePower outputs a power sweep row in JSON format.
func (w *JSONStdoutWriter) WritePower(row study.PowerRow) error {
	w.emit(row)
	return nil
}

// WritePowers outputs multiple power sweep rows in JSON format.
func (w *JSONStdoutWriter) WritePowers(rows []study.PowerRow) error {
	for _, r := range rows {
		_ = w.WritePower(r)
	}
	return nil
}

// WriteState outputs a run progress row in JSON format.
func (w *JSONStdoutWriter) WriteState(row study.RunStateRow) error {
	w.emit(row)
	return nil
}

// WriteRun outputs a run metadata row in JSON format.
func (w *JSONStdoutWriter) WriteRun(row study.RunRow) error {
	w.emit(row)
	return nil
}
