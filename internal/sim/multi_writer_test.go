package sim

import (
	"errors"
	"testing"

	"catisim/internal/study"
)

type caseOnlyWriter struct {
	calls int
}

func (w *caseOnlyWriter) Write(study.CaseRow) error {
	w.calls++
	return nil
}

type failingWriter struct {
	err error
}

func (w *failingWriter) Write(study.CaseRow) error { return w.err }

type closableWriter struct {
	caseOnlyWriter
	closed bool
}

func (w *closableWriter) Close() error {
	w.closed = true
	return nil
}

func TestMultiWriterRoutesByCapability(t *testing.T) {
	mock := &MockWriter{}
	caseOnly := &caseOnlyWriter{}
	mw := NewMultiWriter(mock, caseOnly)

	rows := []study.CaseRow{{RingID: 0}, {RingID: 1}}
	if err := mw.WriteBatch(rows); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if len(mock.CaseRows) != 2 {
		t.Fatalf("mock case rows = %d, want 2", len(mock.CaseRows))
	}
	if caseOnly.calls != 2 {
		t.Fatalf("case-only writer calls = %d, want 2", caseOnly.calls)
	}

	if err := mw.WriteRing(study.RingRow{RingID: 1}); err != nil {
		t.Fatalf("WriteRing: %v", err)
	}
	if len(mock.RingRows) != 1 {
		t.Fatalf("mock ring rows = %d, want 1", len(mock.RingRows))
	}

	if err := mw.WriteState(study.RunStateRow{Phase: study.PhaseSimulating}); err != nil {
		t.Fatalf("WriteState: %v", err)
	}
	if len(mock.StateRows) != 1 {
		t.Fatalf("mock state rows = %d, want 1", len(mock.StateRows))
	}
}

func TestMultiWriterContinuesPastFailure(t *testing.T) {
	errSink := errors.New("sink failed")
	mock := &MockWriter{}
	mw := NewMultiWriter(&failingWriter{err: errSink}, mock)

	err := mw.Write(study.CaseRow{RingID: 0})
	if !errors.Is(err, errSink) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if len(mock.CaseRows) != 1 {
		t.Fatalf("healthy writer rows = %d, want 1", len(mock.CaseRows))
	}
}

func TestMultiWriterClose(t *testing.T) {
	cw := &closableWriter{}
	mw := NewMultiWriter(cw, &MockWriter{})

	if err := mw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !cw.closed {
		t.Fatalf("closable writer was not closed")
	}
}
