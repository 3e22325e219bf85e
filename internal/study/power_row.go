package study

// PowerRow summarizes one Monte Carlo sweep cell: the estimated power to
// detect the response-delay effect at one candidate sample size. Replicates
// whose fit did not converge stay in the denominator and count as not
// significant, so Power is conservative and Replicates always equals the
// number of replicates run.
type PowerRow struct {
	StudyID       string  `json:"study_id"`      // TAG
	Arm           string  `json:"arm,omitempty"` // TAG, sweep arm if any
	SampleSize    int     `json:"sample_size"`   // TAG
	Replicates    int     `json:"replicates"`
	Converged     int     `json:"converged"`
	Significant   int     `json:"significant"`
	Power         float64 `json:"power"`
	PowerCILow    float64 `json:"power_ci_low"`
	PowerCIHigh   float64 `json:"power_ci_high"`
	Alpha         float64 `json:"alpha"`
	MeanDelayCoef float64 `json:"mean_delay_coef"`
}

var PowerTableName = tableFromEnv("CATI_POWER_TABLE", "cati_power")

func (PowerRow) TableName() string { return PowerTableName }
