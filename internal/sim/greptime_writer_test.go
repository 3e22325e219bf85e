package sim

import (
	"context"
	"testing"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"

	"catisim/internal/study"
)

type mockGreptimeClient struct {
	table *table.Table
}

func (m *mockGreptimeClient) Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	if len(tables) > 0 {
		m.table = tables[0]
	}
	return &gpb.GreptimeResponse{}, nil
}

func TestGreptimeWriterCases(t *testing.T) {
	rows := []study.CaseRow{
		{StudyID: "s1", RingID: 0, CaseID: 0, OnsetDay: 0, ReportDay: 1.5, DaySinceIndexReport: 0},
		{StudyID: "s1", RingID: 0, CaseID: 1, Generation: 1, OnsetDay: 4, ReportDay: 6, DaySinceIndexReport: 4.5, PostIntervention: true},
	}

	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, caseTable: "cati_cases"}

	if err := w.WriteBatch(rows); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if m.table == nil {
		t.Fatalf("expected table to be captured")
	}

	schema := m.table.GetRows().Schema
	if len(schema) != 9 {
		t.Fatalf("unexpected schema length: %d", len(schema))
	}
	if schema[7].Datatype != gpb.ColumnDataType_BOOLEAN {
		t.Fatalf("post_intervention column type = %v, want %v", schema[7].Datatype, gpb.ColumnDataType_BOOLEAN)
	}

	got := m.table.GetRows().Rows
	if len(got) != 2 {
		t.Fatalf("row count = %d, want 2", len(got))
	}
	if v := got[0].Values[0].GetStringValue(); v != "s1" {
		t.Fatalf("study_id = %s, want s1", v)
	}
	if v := got[1].Values[2].GetI64Value(); v != 1 {
		t.Fatalf("case_id = %d, want 1", v)
	}
	if v := got[1].Values[5].GetF64Value(); v != 6 {
		t.Fatalf("report_day = %v, want 6", v)
	}
	if !got[1].Values[7].GetBoolValue() {
		t.Fatalf("expected second case to be post intervention")
	}
}

func TestGreptimeWriterRings(t *testing.T) {
	rows := []study.RingRow{{
		StudyID:           "s1",
		RingID:            3,
		Cases:             7,
		LastReportDay:     19.25,
		Population:        480,
		ResponseDelayDays: 5,
		DelayBucket:       study.BucketMedium,
		Coverage:          0.8,
		Surveillance:      study.SurveillanceLate,
	}}

	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, ringTable: "cati_rings"}

	if err := w.WriteRings(rows); err != nil {
		t.Fatalf("WriteRings: %v", err)
	}
	if m.table == nil {
		t.Fatalf("expected table to be captured")
	}

	vals := m.table.GetRows().Rows[0].Values
	if v := vals[2].GetStringValue(); v != study.SurveillanceLate {
		t.Fatalf("surveillance = %s, want %s", v, study.SurveillanceLate)
	}
	if v := vals[3].GetI64Value(); v != 7 {
		t.Fatalf("cases = %d, want 7", v)
	}
	if v := vals[7].GetStringValue(); v != study.BucketMedium {
		t.Fatalf("delay_bucket = %s, want %s", v, study.BucketMedium)
	}
}

func TestGreptimeWriterPower(t *testing.T) {
	rows := []study.PowerRow{{
		StudyID:     "s1",
		Arm:         "baseline",
		SampleSize:  100,
		Replicates:  500,
		Converged:   495,
		Significant: 430,
		Power:       0.8686868686868687,
		Alpha:       0.05,
	}}

	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, powerTable: "cati_power"}

	if err := w.WritePowers(rows); err != nil {
		t.Fatalf("WritePowers: %v", err)
	}
	if m.table == nil {
		t.Fatalf("expected table to be captured")
	}

	vals := m.table.GetRows().Rows[0].Values
	if v := vals[1].GetStringValue(); v != "baseline" {
		t.Fatalf("arm = %s, want baseline", v)
	}
	if v := vals[2].GetI64Value(); v != 100 {
		t.Fatalf("sample_size = %d, want 100", v)
	}
	if v := vals[6].GetF64Value(); v != rows[0].Power {
		t.Fatalf("power = %v, want %v", v, rows[0].Power)
	}
}

func TestGreptimeWriterRunSampleSizesJSON(t *testing.T) {
	row := study.RunRow{
		RunID:       "r1",
		StudyID:     "s1",
		Seed:        42,
		Rings:       100,
		SampleSizes: []int{50, 100},
		StartedAt:   time.Unix(0, 0).UTC(),
	}

	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, runTable: "cati_runs"}

	if err := w.WriteRun(row); err != nil {
		t.Fatalf("WriteRun: %v", err)
	}
	if m.table == nil {
		t.Fatalf("expected table to be captured")
	}

	schema := m.table.GetRows().Schema
	if len(schema) != 6 {
		t.Fatalf("unexpected schema length: %d", len(schema))
	}
	if schema[4].Datatype != gpb.ColumnDataType_JSON {
		t.Fatalf("sample_sizes column type = %v, want %v", schema[4].Datatype, gpb.ColumnDataType_JSON)
	}

	vals := m.table.GetRows().Rows[0].Values
	if v := vals[2].GetU64Value(); v != 42 {
		t.Fatalf("seed = %d, want 42", v)
	}
	got := vals[4].GetStringValue()
	want := "[50,100]"
	if got != want {
		t.Fatalf("sample_sizes = %s, want %s", got, want)
	}
}

func TestGreptimeWriterState(t *testing.T) {
	row := study.RunStateRow{
		StudyID:         "s1",
		RunID:           "r1",
		Phase:           study.PhaseEstimating,
		RingsDone:       80,
		RingsTotal:      100,
		Cases:           412,
		DegenerateRings: 2,
		FitFailures:     1,
		ElapsedSeconds:  3.5,
		Timestamp:       time.Unix(0, 0).UTC(),
	}

	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, stateTable: "cati_run_state"}

	if err := w.WriteState(row); err != nil {
		t.Fatalf("WriteState: %v", err)
	}
	if m.table == nil {
		t.Fatalf("expected table to be captured")
	}

	vals := m.table.GetRows().Rows[0].Values
	if v := vals[2].GetStringValue(); v != study.PhaseEstimating {
		t.Fatalf("phase = %s, want %s", v, study.PhaseEstimating)
	}
	if v := vals[3].GetI64Value(); v != 80 {
		t.Fatalf("rings_done = %d, want 80", v)
	}
	if v := vals[8].GetF64Value(); v != 3.5 {
		t.Fatalf("elapsed_seconds = %v, want 3.5", v)
	}
}
