package sim

import (
	"encoding/csv"
	"os"
	"strconv"

	"catisim/internal/study"
)

// CSVWriter exports case, ring, and power tables as CSV for analysis outside
// the database. Progress rows are not covered; pair it with another writer
// when those are wanted.
type CSVWriter struct {
	caseFile  *os.File
	ringFile  *os.File
	powerFile *os.File
	caseCSV   *csv.Writer
	ringCSV   *csv.Writer
	powerCSV  *csv.Writer
}

var (
	caseHeader = []string{"study_id", "ring_id", "case_id", "generation", "onset_day", "report_day", "day_since_index_report", "post_intervention"}
	ringHeader = []string{"study_id", "ring_id", "cases", "last_report_day", "population", "response_delay_days", "delay_bucket", "coverage", "surveillance", "heterogeneity", "index_report_day", "intervention_start_day", "intervention_end_day"}
	powHeader  = []string{"study_id", "arm", "sample_size", "replicates", "converged", "significant", "power", "power_ci_low", "power_ci_high", "alpha", "mean_delay_coef"}
)

// NewCSVWriter creates a CSVWriter. ringPath or powerPath may be empty to skip those tables.
func NewCSVWriter(casePath, ringPath, powerPath string) (*CSVWriter, error) {
	cf, err := os.Create(casePath)
	if err != nil {
		return nil, err
	}
	w := &CSVWriter{caseFile: cf, caseCSV: csv.NewWriter(cf)}
	if err := w.caseCSV.Write(caseHeader); err != nil {
		cf.Close()
		return nil, err
	}
	if ringPath != "" {
		rf, err := os.Create(ringPath)
		if err != nil {
			cf.Close()
			return nil, err
		}
		w.ringFile = rf
		w.ringCSV = csv.NewWriter(rf)
		if err := w.ringCSV.Write(ringHeader); err != nil {
			rf.Close()
			cf.Close()
			return nil, err
		}
	}
	if powerPath != "" {
		pf, err := os.Create(powerPath)
		if err != nil {
			if w.ringFile != nil {
				w.ringFile.Close()
			}
			cf.Close()
			return nil, err
		}
		w.powerFile = pf
		w.powerCSV = csv.NewWriter(pf)
		if err := w.powerCSV.Write(powHeader); err != nil {
			pf.Close()
			if w.ringFile != nil {
				w.ringFile.Close()
			}
			cf.Close()
			return nil, err
		}
	}
	return w, nil
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// Write appends a case row.
func (w *CSVWriter) Write(row study.CaseRow) error {
	return w.caseCSV.Write([]string{
		row.StudyID,
		strconv.Itoa(row.RingID),
		strconv.Itoa(row.CaseID),
		strconv.Itoa(row.Generation),
		ftoa(row.OnsetDay),
		ftoa(row.ReportDay),
		ftoa(row.DaySinceIndexReport),
		strconv.FormatBool(row.PostIntervention),
	})
}

// WriteBatch appends multiple case rows.
func (w *CSVWriter) WriteBatch(rows []study.CaseRow) error {
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteRing appends a ring summary row, if enabled.
func (w *CSVWriter) WriteRing(row study.RingRow) error {
	if w.ringCSV == nil {
		return nil
	}
	return w.ringCSV.Write([]string{
		row.StudyID,
		strconv.Itoa(row.RingID),
		strconv.Itoa(row.Cases),
		ftoa(row.LastReportDay),
		ftoa(row.Population),
		ftoa(row.ResponseDelayDays),
		row.DelayBucket,
		ftoa(row.Coverage),
		row.Surveillance,
		ftoa(row.Heterogeneity),
		ftoa(row.IndexReportDay),
		ftoa(row.InterventionStartDay),
		ftoa(row.InterventionEndDay),
	})
}

// WriteRings appends multiple ring summary rows.
func (w *CSVWriter) WriteRings(rows []study.RingRow) error {
	for _, r := range rows {
		if err := w.WriteRing(r); err != nil {
			return err
		}
	}
	return nil
}

// WritePower appends a power sweep row, if enabled.
func (w *CSVWriter) WritePower(row study.PowerRow) error {
	if w.powerCSV == nil {
		return nil
	}
	return w.powerCSV.Write([]string{
		row.StudyID,
		row.Arm,
		strconv.Itoa(row.SampleSize),
		strconv.Itoa(row.Replicates),
		strconv.Itoa(row.Converged),
		strconv.Itoa(row.Significant),
		ftoa(row.Power),
		ftoa(row.PowerCILow),
		ftoa(row.PowerCIHigh),
		ftoa(row.Alpha),
		ftoa(row.MeanDelayCoef),
	})
}

// WritePowers appends multiple power sweep rows.
func (w *CSVWriter) WritePowers(rows []study.PowerRow) error {
	for _, r := range rows {
		if err := w.WritePower(r); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the underlying files.
func (w *CSVWriter) Close() error {
	var err error
	for _, cw := range []*csv.Writer{w.caseCSV, w.ringCSV, w.powerCSV} {
		if cw == nil {
			continue
		}
		cw.Flush()
		if e := cw.Error(); e != nil && err == nil {
			err = e
		}
	}
	for _, f := range []*os.File{w.caseFile, w.ringFile, w.powerFile} {
		if f == nil {
			continue
		}
		if e := f.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
