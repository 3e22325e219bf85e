package epidemic

import (
	"catisim/internal/config"
	"catisim/internal/study"
)

// Summarize collapses a ring into its analysis row. The heterogeneity
// covariate consumes one NB draw from the ring's sampler, so summaries stay
// reproducible under the per-ring seeding scheme.
func Summarize(studyID string, r *Ring, cfg *config.StudyConfig, s *Sampler) study.RingRow {
	last := 0.0
	for _, c := range r.Cases {
		if c.DaySinceIndexReport > last {
			last = c.DaySinceIndexReport
		}
	}
	return study.RingRow{
		StudyID:              studyID,
		RingID:               r.ID,
		Cases:                len(r.Cases),
		LastReportDay:        last,
		Population:           r.Population,
		ResponseDelayDays:    r.ResponseDelayDays,
		DelayBucket:          delayBucket(r.ResponseDelayDays, cfg.DelayBuckets),
		Coverage:             cfg.Intervention.Coverage,
		Surveillance:         surveillanceCategory(int(r.IndexDelayDays)),
		Heterogeneity:        s.NegBin(cfg.Heterogeneity.Mean, cfg.Heterogeneity.Dispersion),
		IndexReportDay:       r.IndexReportDay,
		InterventionStartDay: r.InterventionStart,
		InterventionEndDay:   r.InterventionEnd,
	}
}

// CaseRows converts a ring's kept cases into output rows.
func CaseRows(studyID string, r *Ring) []study.CaseRow {
	rows := make([]study.CaseRow, 0, len(r.Cases))
	for _, c := range r.Cases {
		rows = append(rows, study.CaseRow{
			StudyID:             studyID,
			RingID:              r.ID,
			CaseID:              c.ID,
			Generation:          c.Generation,
			OnsetDay:            c.OnsetDay,
			ReportDay:           c.ReportDay,
			DaySinceIndexReport: c.DaySinceIndexReport,
			PostIntervention:    c.OnsetDay >= r.InterventionStart,
		})
	}
	return rows
}

// surveillanceCategory derives the capacity category from the index
// reporting delay. The rules are ordered and the first match wins: a delay of
// exactly one day satisfies both the next-day and the late rule, and resolves
// to next-day.
func surveillanceCategory(delayDays int) string {
	switch {
	case delayDays == 0:
		return study.SurveillanceSameDay
	case delayDays == 1:
		return study.SurveillanceNextDay
	case delayDays >= 1:
		return study.SurveillanceLate
	}
	return study.SurveillanceLate
}

// delayBucket classifies the response delay against ascending boundaries.
func delayBucket(delayDays float64, bounds []float64) string {
	names := []string{study.BucketShort, study.BucketMedium, study.BucketLong}
	for i, b := range bounds {
		if delayDays <= b && i < len(names) {
			return names[i]
		}
	}
	return study.BucketLong
}
