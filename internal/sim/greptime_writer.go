package sim

import (
	"context"
	"math"
	"net"
	"strconv"
	"time"

	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"

	"catisim/internal/study"
)

const defaultGreptimePort = 4001

const msPerDay = 86_400_000

// greptimeClient is the slice of the ingester client the writer needs.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes study rows to GreptimeDB via the ingester client.
// Case and ring timestamps are study days mapped onto the epoch, so a fixed
// seed writes identical tables; state and run rows carry wall-clock times.
type GreptimeDBWriter struct {
	client     greptimeClient
	caseTable  string
	ringTable  string
	powerTable string
	stateTable string
	runTable   string
}

// NewGreptimeDBWriter connects to a GreptimeDB endpoint ("host" or
// "host:port") and targets the given database.
func NewGreptimeDBWriter(endpoint, database string) (*GreptimeDBWriter, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	port := defaultGreptimePort
	if err != nil {
		host = endpoint
	} else {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return nil, err
		}
	}

	client, err := greptime.NewClient(greptime.NewConfig(host).
		WithPort(port).
		WithDatabase(database))
	if err != nil {
		return nil, err
	}

	return &GreptimeDBWriter{
		client:     client,
		caseTable:  study.CaseTableName,
		ringTable:  study.RingTableName,
		powerTable: study.PowerTableName,
		stateTable: study.StateTableName,
		runTable:   study.RunTableName,
	}, nil
}

// dayToTime maps a study-relative day offset onto the epoch at millisecond
// resolution.
func dayToTime(day float64) time.Time {
	return time.UnixMilli(int64(math.Round(day * msPerDay))).UTC()
}

// Write inserts a single case row.
func (w *GreptimeDBWriter) Write(row study.CaseRow) error {
	return w.WriteBatch([]study.CaseRow{row})
}

// WriteBatch inserts multiple case rows. case_id is a tag so cases sharing a
// report day never collapse into one row.
func (w *GreptimeDBWriter) WriteBatch(rows []study.CaseRow) error {
	if len(rows) == 0 {
		return nil
	}

	tbl, err := table.New(w.caseTable)
	if err != nil {
		return err
	}
	if err := tbl.AddTagColumn("study_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("ring_id", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("case_id", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("generation", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("onset_day", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("report_day", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("day_since_index_report", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("post_intervention", types.BOOLEAN); err != nil {
		return err
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}

	for _, r := range rows {
		err := tbl.AddRow(r.StudyID, int64(r.RingID), int64(r.CaseID),
			int64(r.Generation), r.OnsetDay, r.ReportDay, r.DaySinceIndexReport,
			r.PostIntervention, dayToTime(r.ReportDay))
		if err != nil {
			return err
		}
	}

	_, err = w.client.Write(context.Background(), tbl)
	return err
}

// WriteRing inserts a single ring summary row.
func (w *GreptimeDBWriter) WriteRing(row study.RingRow) error {
	return w.WriteRings([]study.RingRow{row})
}

// WriteRings inserts multiple ring summary rows.
func (w *GreptimeDBWriter) WriteRings(rows []study.RingRow) error {
	if len(rows) == 0 {
		return nil
	}

	tbl, err := table.New(w.ringTable)
	if err != nil {
		return err
	}
	if err := tbl.AddTagColumn("study_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("ring_id", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("surveillance", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("cases", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("last_report_day", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("population", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("response_delay_days", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("delay_bucket", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("coverage", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("heterogeneity", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("index_report_day", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("intervention_start_day", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("intervention_end_day", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}

	for _, r := range rows {
		err := tbl.AddRow(r.StudyID, int64(r.RingID), r.Surveillance,
			int64(r.Cases), r.LastReportDay, r.Population, r.ResponseDelayDays,
			r.DelayBucket, r.Coverage, r.Heterogeneity, r.IndexReportDay,
			r.InterventionStartDay, r.InterventionEndDay,
			dayToTime(r.LastReportDay))
		if err != nil {
			return err
		}
	}

	_, err = w.client.Write(context.Background(), tbl)
	return err
}

// WritePower inserts a single power sweep row.
func (w *GreptimeDBWriter) WritePower(row study.PowerRow) error {
	return w.WritePowers([]study.PowerRow{row})
}

// WritePowers inserts multiple power sweep rows. The timestamp is pinned to
// the epoch and sample_size is a tag, so re-running a study upserts its sweep
// instead of appending a second copy.
func (w *GreptimeDBWriter) WritePowers(rows []study.PowerRow) error {
	if len(rows) == 0 {
		return nil
	}

	tbl, err := table.New(w.powerTable)
	if err != nil {
		return err
	}
	if err := tbl.AddTagColumn("study_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("arm", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("sample_size", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("replicates", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("converged", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("significant", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("power", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("power_ci_low", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("power_ci_high", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("alpha", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("mean_delay_coef", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}

	for _, r := range rows {
		err := tbl.AddRow(r.StudyID, r.Arm, int64(r.SampleSize),
			int64(r.Replicates), int64(r.Converged), int64(r.Significant),
			r.Power, r.PowerCILow, r.PowerCIHigh, r.Alpha, r.MeanDelayCoef,
			time.UnixMilli(0).UTC())
		if err != nil {
			return err
		}
	}

	_, err = w.client.Write(context.Background(), tbl)
	return err
}

// WriteState inserts a run progress row.
func (w *GreptimeDBWriter) WriteState(row study.RunStateRow) error {
	tbl, err := table.New(w.stateTable)
	if err != nil {
		return err
	}
	if err := tbl.AddTagColumn("study_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("run_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("phase", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("rings_done", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("rings_total", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("cases", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("degenerate_rings", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("fit_failures", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("elapsed_seconds", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}

	err = tbl.AddRow(row.StudyID, row.RunID, row.Phase,
		int64(row.RingsDone), int64(row.RingsTotal), int64(row.Cases),
		int64(row.DegenerateRings), int64(row.FitFailures),
		row.ElapsedSeconds, row.Timestamp)
	if err != nil {
		return err
	}

	_, err = w.client.Write(context.Background(), tbl)
	return err
}

// WriteRun inserts the run metadata row. Sample sizes go into a JSON column.
func (w *GreptimeDBWriter) WriteRun(row study.RunRow) error {
	tbl, err := table.New(w.runTable)
	if err != nil {
		return err
	}
	if err := tbl.AddTagColumn("run_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("study_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("seed", types.UINT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("rings", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("sample_sizes", types.JSON); err != nil {
		return err
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}

	err = tbl.AddRow(row.RunID, row.StudyID, row.Seed, int64(row.Rings),
		row.SampleSizes, row.StartedAt)
	if err != nil {
		return err
	}

	_, err = w.client.Write(context.Background(), tbl)
	return err
}
