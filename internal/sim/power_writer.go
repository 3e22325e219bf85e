package sim

import "catisim/internal/study"

// PowerWriter handles power sweep result rows.
type PowerWriter interface {
	WritePower(study.PowerRow) error
}

// Optional: power writers may support batch mode.
type batchPowerWriter interface {
	WritePowers([]study.PowerRow) error
}
