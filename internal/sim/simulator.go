// Simulator orchestrating ring generation and row writing
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"catisim/internal/config"
	"catisim/internal/epidemic"
	"catisim/internal/logging"
	"catisim/internal/metrics"
	"catisim/internal/study"
)

// CaseWriter is an interface to support different output writers.
type CaseWriter interface {
	Write(study.CaseRow) error
}

// RingWriter handles per-ring summary rows.
type RingWriter interface {
	WriteRing(study.RingRow) error
}

// Optional: writers can also support batch mode
type batchWriter interface {
	WriteBatch([]study.CaseRow) error
}

// Optional: ring writers may support batch mode
type batchRingWriter interface {
	WriteRings([]study.RingRow) error
}

// PCG stream selectors. Ring generation and pilot resampling draw from
// separate substreams of the configured seed, so adding power replicates
// never shifts the simulated rings.
const (
	ringStream  = 0x9e3779b97f4a7c15
	powerStream = 0xd1b54a32d192ed03
)

// PowerRand returns the resampling stream for the power stage of a run.
func PowerRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, powerStream))
}

// RunStatus is a snapshot of run progress for the admin API and state rows.
type RunStatus struct {
	StudyID         string  `json:"study_id"`
	RunID           string  `json:"run_id"`
	Phase           string  `json:"phase"`
	RingsDone       int     `json:"rings_done"`
	RingsTotal      int     `json:"rings_total"`
	Cases           int     `json:"cases"`
	DegenerateRings int     `json:"degenerate_rings"`
	FitFailures     int     `json:"fit_failures"`
	ElapsedSeconds  float64 `json:"elapsed_seconds"`
}

// Simulator generates one batch of rings and writes the study tables.
type Simulator struct {
	studyID     string
	runID       string
	cfg         *config.StudyConfig
	sched       epidemic.Schedule
	writer      CaseWriter
	ringWriter  RingWriter
	stateWriter StateWriter
	powerWriter PowerWriter
	runWriter   RunWriter
	log         *slog.Logger
	now         func() time.Time

	mu          sync.Mutex
	phase       string
	startedAt   time.Time
	ringsDone   int
	cases       int
	degenerate  int
	fitFailures int
	pool        []study.RingRow
	powerRows   []study.PowerRow
}

// NewSimulator wires a simulator to its output writers. State, power, and run
// rows go to whichever writer also implements those interfaces.
func NewSimulator(studyID string, cfg *config.StudyConfig, writer CaseWriter, rings RingWriter, log *slog.Logger) *Simulator {
	s := &Simulator{
		studyID:    studyID,
		runID:      uuid.New().String(),
		cfg:        cfg,
		sched:      epidemic.NewSchedule(cfg.Intervention),
		writer:     writer,
		ringWriter: rings,
		log:        log,
		now:        time.Now,
		phase:      study.PhaseSimulating,
	}
	for _, w := range []any{writer, rings} {
		if sw, ok := w.(StateWriter); ok && s.stateWriter == nil {
			s.stateWriter = sw
		}
		if pw, ok := w.(PowerWriter); ok && s.powerWriter == nil {
			s.powerWriter = pw
		}
		if rw, ok := w.(RunWriter); ok && s.runWriter == nil {
			s.runWriter = rw
		}
	}
	return s
}

// Run simulates the configured number of rings. Rings are generated in
// parallel from seeds drawn up front in ring order, and rows are written in
// ring order afterwards, so a fixed seed reproduces the case and ring tables
// byte for byte at any worker count. Degenerate rings are logged, counted,
// and excluded from the output.
func (s *Simulator) Run(ctx context.Context) error {
	s.mu.Lock()
	s.startedAt = s.now()
	s.phase = study.PhaseSimulating
	s.mu.Unlock()

	if s.runWriter != nil {
		row := study.RunRow{
			RunID:       s.runID,
			StudyID:     s.studyID,
			Seed:        s.cfg.Seed,
			Rings:       s.cfg.Rings,
			SampleSizes: append([]int(nil), s.cfg.Power.SampleSizes...),
			StartedAt:   s.now().UTC(),
		}
		if err := s.runWriter.WriteRun(row); err != nil {
			return fmt.Errorf("write run row: %w", err)
		}
	}

	ctx = logging.NewContext(ctx, s.log)

	master := rand.New(rand.NewPCG(s.cfg.Seed, ringStream))
	seeds := make([][2]uint64, s.cfg.Rings)
	for i := range seeds {
		seeds[i] = [2]uint64{master.Uint64(), master.Uint64()}
	}

	type result struct {
		degenerate bool
		row        study.RingRow
		cases      []study.CaseRow
	}
	results := make([]result, s.cfg.Rings)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range seeds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sampler := epidemic.NewSeededSampler(seeds[i][0], seeds[i][1])
			ring, err := epidemic.GenerateRing(s.cfg, s.sched, i, sampler)
			switch {
			case errors.Is(err, epidemic.ErrChainOverflow):
				logging.FromContext(gctx).Warn("ring excluded", "ring", i, "err", err)
				metrics.DegenerateRings.Inc()
				results[i] = result{degenerate: true}
				s.progress(0, 1)
				return nil
			case err != nil:
				return fmt.Errorf("ring %d: %w", i, err)
			}
			results[i] = result{
				row:   epidemic.Summarize(s.studyID, ring, s.cfg, sampler),
				cases: epidemic.CaseRows(s.studyID, ring),
			}
			metrics.RingsSimulated.Inc()
			metrics.CasesGenerated.Add(float64(len(ring.Cases)))
			s.progress(len(ring.Cases), 0)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	pool := make([]study.RingRow, 0, s.cfg.Rings)
	for i := range results {
		if results[i].degenerate {
			continue
		}
		if err := s.writeCases(results[i].cases); err != nil {
			return fmt.Errorf("ring %d cases: %w", i, err)
		}
		pool = append(pool, results[i].row)
	}
	if err := s.writeRings(pool); err != nil {
		return err
	}

	s.mu.Lock()
	s.pool = pool
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info("simulation complete",
		"rings", len(pool),
		"degenerate", st.DegenerateRings,
		"cases", st.Cases,
		"elapsed_seconds", st.ElapsedSeconds)
	return nil
}

// RunStateEmitter periodically writes progress rows until ctx is done, then
// writes a final snapshot. It is a no-op when no writer handles state rows.
func (s *Simulator) RunStateEmitter(ctx context.Context, interval time.Duration) {
	if s.stateWriter == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.stateWriter.WriteState(s.stateRow()); err != nil {
				s.log.Warn("state write failed", "err", err)
			}
		case <-ctx.Done():
			if err := s.stateWriter.WriteState(s.stateRow()); err != nil {
				s.log.Warn("state write failed", "err", err)
			}
			return
		}
	}
}

// SetPhase updates the reported run phase.
func (s *Simulator) SetPhase(phase string) {
	s.mu.Lock()
	s.phase = phase
	s.mu.Unlock()
}

// EmitPower writes the sweep results and folds them into the run status.
func (s *Simulator) EmitPower(rows []study.PowerRow) error {
	if s.powerWriter != nil {
		if bw, ok := s.powerWriter.(batchPowerWriter); ok {
			if err := bw.WritePowers(rows); err != nil {
				return err
			}
		} else {
			for _, r := range rows {
				if err := s.powerWriter.WritePower(r); err != nil {
					return err
				}
			}
		}
	}
	s.mu.Lock()
	s.powerRows = append(s.powerRows, rows...)
	for _, r := range rows {
		s.fitFailures += r.Replicates - r.Converged
	}
	s.phase = study.PhaseDone
	s.mu.Unlock()
	return nil
}

// Status returns a progress snapshot.
func (s *Simulator) Status() RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Rings returns a copy of the simulated ring pool.
func (s *Simulator) Rings() []study.RingRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool := make([]study.RingRow, len(s.pool))
	copy(pool, s.pool)
	return pool
}

// PowerRows returns a copy of the recorded sweep results.
func (s *Simulator) PowerRows() []study.PowerRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]study.PowerRow, len(s.powerRows))
	copy(rows, s.powerRows)
	return rows
}

func (s *Simulator) snapshotLocked() RunStatus {
	st := RunStatus{
		StudyID:         s.studyID,
		RunID:           s.runID,
		Phase:           s.phase,
		RingsDone:       s.ringsDone,
		RingsTotal:      s.cfg.Rings,
		Cases:           s.cases,
		DegenerateRings: s.degenerate,
		FitFailures:     s.fitFailures,
	}
	if !s.startedAt.IsZero() {
		st.ElapsedSeconds = s.now().Sub(s.startedAt).Seconds()
	}
	return st
}

func (s *Simulator) stateRow() study.RunStateRow {
	st := s.Status()
	return study.RunStateRow{
		StudyID:         st.StudyID,
		RunID:           st.RunID,
		Phase:           st.Phase,
		RingsDone:       st.RingsDone,
		RingsTotal:      st.RingsTotal,
		Cases:           st.Cases,
		DegenerateRings: st.DegenerateRings,
		FitFailures:     st.FitFailures,
		ElapsedSeconds:  st.ElapsedSeconds,
		Timestamp:       s.now().UTC(),
	}
}

func (s *Simulator) progress(cases, degenerate int) {
	s.mu.Lock()
	s.ringsDone++
	s.cases += cases
	s.degenerate += degenerate
	s.mu.Unlock()
}

// Batch support if the writer implements WriteBatch
func (s *Simulator) writeCases(rows []study.CaseRow) error {
	if len(rows) == 0 || s.writer == nil {
		return nil
	}
	if bw, ok := s.writer.(batchWriter); ok {
		return bw.WriteBatch(rows)
	}
	for _, r := range rows {
		if err := s.writer.Write(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) writeRings(rows []study.RingRow) error {
	if len(rows) == 0 || s.ringWriter == nil {
		return nil
	}
	if bw, ok := s.ringWriter.(batchRingWriter); ok {
		return bw.WriteRings(rows)
	}
	for _, r := range rows {
		if err := s.ringWriter.WriteRing(r); err != nil {
			return err
		}
	}
	return nil
}
