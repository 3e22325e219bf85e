package sim

import "catisim/internal/study"

// RunWriter records one metadata row per run.
type RunWriter interface {
	WriteRun(study.RunRow) error
}
