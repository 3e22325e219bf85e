package power

import (
	"math"
	"math/rand/v2"
	"testing"

	"catisim/internal/study"
)

func makePool(n int) []study.RingRow {
	cats := []string{study.SurveillanceSameDay, study.SurveillanceNextDay, study.SurveillanceLate}
	rows := make([]study.RingRow, n)
	for i := range rows {
		rows[i] = study.RingRow{
			StudyID:           "t",
			RingID:            i,
			Cases:             1 + i%7,
			Population:        400 + float64(i), // unique per ring
			ResponseDelayDays: float64(1 + i%12),
			Surveillance:      cats[i%3],
		}
	}
	return rows
}

func TestPilotSubsample(t *testing.T) {
	pool := makePool(40)
	d, err := Pilot(pool, 15, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("Pilot: %v", err)
	}
	if d.Len() != 15 {
		t.Fatalf("got %d rows, want 15", d.Len())
	}
	poolOffsets := make(map[float64]bool, len(pool))
	for _, r := range pool {
		poolOffsets[math.Log(r.Population)] = true
	}
	seen := make(map[float64]bool)
	for i, off := range d.Offsets {
		if !poolOffsets[off] {
			t.Errorf("offset %g not the log population of any pool ring", off)
		}
		if seen[off] {
			t.Errorf("ring drawn twice (offset %g)", off)
		}
		seen[off] = true
		if d.Counts[i] < 1 {
			t.Errorf("count %g below the index-case floor", d.Counts[i])
		}
	}
}

func TestPilotSizeBounds(t *testing.T) {
	pool := makePool(10)
	rng := rand.New(rand.NewPCG(3, 4))
	if _, err := Pilot(pool, 0, rng); err == nil {
		t.Error("size 0 accepted")
	}
	if _, err := Pilot(pool, 11, rng); err == nil {
		t.Error("size beyond pool accepted")
	}
	if _, err := Pilot(pool, 10, rng); err != nil {
		t.Errorf("full-pool pilot rejected: %v", err)
	}
}

func TestPilotDeterminism(t *testing.T) {
	pool := makePool(30)
	a, err := Pilot(pool, 12, rand.New(rand.NewPCG(5, 6)))
	if err != nil {
		t.Fatalf("Pilot: %v", err)
	}
	b, err := Pilot(pool, 12, rand.New(rand.NewPCG(5, 6)))
	if err != nil {
		t.Fatalf("Pilot: %v", err)
	}
	for i := range a.Offsets {
		if a.Offsets[i] != b.Offsets[i] {
			t.Fatalf("same seed drew different rings at position %d", i)
		}
	}
}
