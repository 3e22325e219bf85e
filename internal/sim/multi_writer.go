package sim

import (
	"errors"
	"io"

	"catisim/internal/study"
)

// MultiWriter fan-outs study rows to multiple writers. Each writer receives
// the row kinds it supports; errors are collected so one failing sink does
// not starve the others.
type MultiWriter struct {
	all          []any
	casewriters  []CaseWriter
	ringwriters  []RingWriter
	powerwriters []PowerWriter
	statewriters []StateWriter
	runwriters   []RunWriter
}

// NewMultiWriter creates a new MultiWriter. Writers are sorted into row-kind
// lists by the interfaces they implement.
func NewMultiWriter(writers ...any) *MultiWriter {
	mw := &MultiWriter{all: writers}
	for _, w := range writers {
		if cw, ok := w.(CaseWriter); ok {
			mw.casewriters = append(mw.casewriters, cw)
		}
		if rw, ok := w.(RingWriter); ok {
			mw.ringwriters = append(mw.ringwriters, rw)
		}
		if pw, ok := w.(PowerWriter); ok {
			mw.powerwriters = append(mw.powerwriters, pw)
		}
		if sw, ok := w.(StateWriter); ok {
			mw.statewriters = append(mw.statewriters, sw)
		}
		if rw, ok := w.(RunWriter); ok {
			mw.runwriters = append(mw.runwriters, rw)
		}
	}
	return mw
}

// Write sends a case row to all case writers.
func (mw *MultiWriter) Write(row study.CaseRow) error {
	var errs []error
	for _, w := range mw.casewriters {
		errs = append(errs, w.Write(row))
	}
	return errors.Join(errs...)
}

// WriteBatch sends multiple case rows to all case writers, using batch if supported.
func (mw *MultiWriter) WriteBatch(rows []study.CaseRow) error {
	var errs []error
	for _, w := range mw.casewriters {
		if bw, ok := w.(batchWriter); ok {
			errs = append(errs, bw.WriteBatch(rows))
			continue
		}
		for _, r := range rows {
			errs = append(errs, w.Write(r))
		}
	}
	return errors.Join(errs...)
}

// WriteRing sends a ring summary row to all ring writers.
func (mw *MultiWriter) WriteRing(row study.RingRow) error {
	var errs []error
	for _, w := range mw.ringwriters {
		errs = append(errs, w.WriteRing(row))
	}
	return errors.Join(errs...)
}

// WriteRings sends multiple ring summary rows to all ring writers, using batch if supported.
func (mw *MultiWriter) WriteRings(rows []study.RingRow) error {
	var errs []error
	for _, w := range mw.ringwriters {
		if bw, ok := w.(batchRingWriter); ok {
			errs = append(errs, bw.WriteRings(rows))
			continue
		}
		for _, r := range rows {
			errs = append(errs, w.WriteRing(r))
		}
	}
	return errors.Join(errs...)
}

// WritePower sends a power sweep row to all power writers.
func (mw *MultiWriter) WritePower(row study.PowerRow) error {
	var errs []error
	for _, w := range mw.powerwriters {
		errs = append(errs, w.WritePower(row))
	}
	return errors.Join(errs...)
}

// WritePowers sends multiple power sweep rows to all power writers, using batch if supported.
func (mw *MultiWriter) WritePowers(rows []study.PowerRow) error {
	var errs []error
	for _, w := range mw.powerwriters {
		if bw, ok := w.(batchPowerWriter); ok {
			errs = append(errs, bw.WritePowers(rows))
			continue
		}
		for _, r := range rows {
			errs = append(errs, w.WritePower(r))
		}
	}
	return errors.Join(errs...)
}

// WriteState sends a run progress row to all state writers.
func (mw *MultiWriter) WriteState(row study.RunStateRow) error {
	var errs []error
	for _, w := range mw.statewriters {
		errs = append(errs, w.WriteState(row))
	}
	return errors.Join(errs...)
}

// WriteRun sends the run metadata row to all run writers.
func (mw *MultiWriter) WriteRun(row study.RunRow) error {
	var errs []error
	for _, w := range mw.runwriters {
		errs = append(errs, w.WriteRun(row))
	}
	return errors.Join(errs...)
}

// Close closes every underlying writer that supports it.
func (mw *MultiWriter) Close() error {
	var errs []error
	for _, w := range mw.all {
		if c, ok := w.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
