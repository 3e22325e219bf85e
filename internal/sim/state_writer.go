package sim

import "catisim/internal/study"

// StateWriter handles run progress rows.
type StateWriter interface {
	WriteState(study.RunStateRow) error
}
