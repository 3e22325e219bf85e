// Study output rows with greptime tags.
package study

import "os"

// CaseRow represents one simulated case kept by the follow-up window.
// Rows carry study-relative days rather than wall-clock timestamps so a
// fixed seed reproduces the table byte for byte.
type CaseRow struct {
	StudyID             string  `json:"study_id"` // TAG
	RingID              int     `json:"ring_id"`  // TAG
	CaseID              int     `json:"case_id"`
	Generation          int     `json:"generation"`
	OnsetDay            float64 `json:"onset_day"`
	ReportDay           float64 `json:"report_day"`
	DaySinceIndexReport float64 `json:"day_since_index_report"`
	PostIntervention    bool    `json:"post_intervention"`
}

// RingRow is the per-ring analysis record consumed by the power stage:
// the regression response (Cases), the covariate of interest
// (ResponseDelayDays) and the grouping factor (Surveillance).
type RingRow struct {
	StudyID              string  `json:"study_id"` // TAG
	RingID               int     `json:"ring_id"`  // TAG
	Cases                int     `json:"cases"`
	LastReportDay        float64 `json:"last_report_day"`
	Population           float64 `json:"population"`
	ResponseDelayDays    float64 `json:"response_delay_days"`
	DelayBucket          string  `json:"delay_bucket"`
	Coverage             float64 `json:"coverage"`
	Surveillance         string  `json:"surveillance"` // TAG
	Heterogeneity        float64 `json:"heterogeneity"`
	IndexReportDay       float64 `json:"index_report_day"`
	InterventionStartDay float64 `json:"intervention_start_day"`
	InterventionEndDay   float64 `json:"intervention_end_day"`
}

// Surveillance capacity categories. Derived from the index reporting delay;
// the matching rules are ordered and first match wins (see epidemic.Summarize).
const (
	SurveillanceSameDay = "1"
	SurveillanceNextDay = "2"
	SurveillanceLate    = "3"
)

// Response delay buckets.
const (
	BucketShort  = "short"
	BucketMedium = "medium"
	BucketLong   = "long"
)

func tableFromEnv(env, fallback string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	return fallback
}

// Table names used when writing to GreptimeDB, overridable via env.
var (
	CaseTableName = tableFromEnv("CATI_CASE_TABLE", "cati_cases")
	RingTableName = tableFromEnv("CATI_RING_TABLE", "cati_rings")
)

func (CaseRow) TableName() string { return CaseTableName }
func (RingRow) TableName() string { return RingTableName }
