package study

import "time"

// Run phases reported in state rows.
const (
	PhaseSimulating = "simulating"
	PhaseEstimating = "estimating"
	PhaseDone       = "done"
)

// RunStateRow captures batch progress. Unlike case/ring/power rows it carries
// wall-clock time and is excluded from the byte-reproducibility guarantee.
type RunStateRow struct {
	StudyID         string    `json:"study_id"` // TAG
	RunID           string    `json:"run_id"`   // TAG
	Phase           string    `json:"phase"`
	RingsDone       int       `json:"rings_done"`
	RingsTotal      int       `json:"rings_total"`
	Cases           int       `json:"cases"`
	DegenerateRings int       `json:"degenerate_rings"`
	FitFailures     int       `json:"fit_failures"`
	ElapsedSeconds  float64   `json:"elapsed_seconds"`
	Timestamp       time.Time `json:"ts"` // TIME INDEX
}

// RunRow is written once per run and links the reproducible output tables to
// the run that produced them.
type RunRow struct {
	RunID       string    `json:"run_id"`   // TAG
	StudyID     string    `json:"study_id"` // TAG
	Seed        uint64    `json:"seed"`
	Rings       int       `json:"rings"`
	SampleSizes []int     `json:"sample_sizes,omitempty"`
	StartedAt   time.Time `json:"started_at"` // TIME INDEX
}

var (
	StateTableName = tableFromEnv("CATI_STATE_TABLE", "cati_run_state")
	RunTableName   = tableFromEnv("CATI_RUN_TABLE", "cati_runs")
)

func (RunStateRow) TableName() string { return StateTableName }
func (RunRow) TableName() string      { return RunTableName }
