// ColorStdoutWriter prints human-friendly, colorized study rows to STDOUT.
package sim

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"

	"catisim/internal/config"
	"catisim/internal/study"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorWhite   = "\x1b[37m"
	colorGray    = "\x1b[90m"
)

// ColorStdoutWriter prints study rows using ANSI colors.
type ColorStdoutWriter struct {
	cfg  *config.StudyConfig
	out  io.Writer
	once sync.Once
	mu   sync.Mutex
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter(cfg *config.StudyConfig) *ColorStdoutWriter {
	return &ColorStdoutWriter{
		cfg: cfg,
		out: os.Stdout,
	}
}

// Surveillance categories are ordered best to worst; the palette follows.
func surveillanceColor(cat string) string {
	switch cat {
	case study.SurveillanceSameDay:
		return colorGreen
	case study.SurveillanceNextDay:
		return colorYellow
	case study.SurveillanceLate:
		return colorRed
	}
	return colorGray
}

func bucketColor(bucket string) string {
	switch bucket {
	case study.BucketShort:
		return colorGreen
	case study.BucketMedium:
		return colorYellow
	case study.BucketLong:
		return colorRed
	}
	return colorGray
}

func (w *ColorStdoutWriter) printOverview() {
	if w.cfg == nil {
		return
	}

	fmt.Fprintln(w.out, "Study Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Rings:\t%d\n", w.cfg.Rings)
	fmt.Fprintf(tw, "Follow-up (days):\t%.0f\n", w.cfg.FollowUpDays)
	fmt.Fprintf(tw, "Population:\t%.0f ± %.0f (min %.0f)\n", w.cfg.Population.Mean, w.cfg.Population.SD, w.cfg.Population.Min)
	fmt.Fprintf(tw, "Offspring:\t%s mean=%.2f dispersion=%.2f\n", w.cfg.Offspring.Family, w.cfg.Offspring.Mean, w.cfg.Offspring.Dispersion)
	fmt.Fprintf(tw, "Serial Interval (days):\t%.1f\n", w.cfg.SerialInterval.Mean())
	fmt.Fprintf(tw, "Report Delay Before/After (days):\t%.1f / %.1f\n", w.cfg.ReportDelay.Before.Mean(), w.cfg.ReportDelay.After.Mean())
	fmt.Fprintf(tw, "Coverage:\t%.2f\n", w.cfg.Intervention.Coverage)
	fmt.Fprintf(tw, "Response Delay (days):\t%.0f-%.0f\n", w.cfg.Intervention.DelayMinDays, w.cfg.Intervention.DelayMaxDays)
	fmt.Fprintf(tw, "Seed:\t%d\n", w.cfg.Seed)
	tw.Flush()

	fmt.Fprintln(w.out, "\nPower Sweep:")
	tw = tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Sample Sizes:\t%v\n", w.cfg.Power.SampleSizes)
	fmt.Fprintf(tw, "Replicates:\t%d\n", w.cfg.Power.Replicates)
	fmt.Fprintf(tw, "Alpha:\t%.3f\n", w.cfg.Power.Alpha)
	tw.Flush()
	fmt.Fprintln(w.out)
}

// Write outputs a single case row in colorized format.
func (w *ColorStdoutWriter) Write(row study.CaseRow) error {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()

	fmt.Fprintf(w.out, "%s[ring %d]%s ", colorGray, row.RingID, colorReset)
	fmt.Fprintf(w.out, "%scase=%d%s ", colorWhite, row.CaseID, colorReset)
	fmt.Fprintf(w.out, "%sgen=%d%s ", colorBlue, row.Generation, colorReset)
	fmt.Fprintf(w.out, "%sonset=%.1f%s ", colorGreen, row.OnsetDay, colorReset)
	fmt.Fprintf(w.out, "%sreport=%.1f%s ", colorYellow, row.ReportDay, colorReset)
	fmt.Fprintf(w.out, "%sd=%.0f%s", colorCyan, row.DaySinceIndexReport, colorReset)
	if row.PostIntervention {
		fmt.Fprintf(w.out, " %spost%s", colorMagenta, colorReset)
	}
	fmt.Fprintln(w.out)
	return nil
}

// WriteBatch outputs multiple case rows.
func (w *ColorStdoutWriter) WriteBatch(rows []study.CaseRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteRing prints a ring summary row to STDOUT.
func (w *ColorStdoutWriter) WriteRing(row study.RingRow) error {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%s[ring %d]%s %sRING%s cases=%d last=%.1f pop=%.0f delay=%.0f %s%s%s %scat=%s%s het=%.2f\n",
		colorGray, row.RingID, colorReset,
		colorBlue, colorReset, row.Cases, row.LastReportDay, row.Population,
		row.ResponseDelayDays,
		bucketColor(row.DelayBucket), row.DelayBucket, colorReset,
		surveillanceColor(row.Surveillance), row.Surveillance, colorReset,
		row.Heterogeneity)
	return nil
}

// WriteRings prints multiple ring summary rows.
func (w *ColorStdoutWriter) WriteRings(rows []study.RingRow) error {
	for _, r := range rows {
		_ = w.WriteRing(r)
	}
	return nil
}

// WritePower prints a power sweep row to STDOUT.
func (w *ColorStdoutWriter) WritePower(row study.PowerRow) error {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()
	powerColor := colorRed
	if row.Power >= 0.8 {
		powerColor = colorGreen
	}
	fmt.Fprintf(w.out, "%sPOWER%s arm=%s n=%d %spower=%.3f%s ci=[%.3f,%.3f] converged=%d/%d coef=%.3f\n",
		colorMagenta, colorReset, row.Arm, row.SampleSize,
		powerColor, row.Power, colorReset,
		row.PowerCILow, row.PowerCIHigh, row.Converged, row.Replicates,
		row.MeanDelayCoef)
	return nil
}

// WritePowers prints multiple power sweep rows.
func (w *ColorStdoutWriter) WritePowers(rows []study.PowerRow) error {
	for _, r := range rows {
		_ = w.WritePower(r)
	}
	return nil
}

// WriteState prints run progress to STDOUT.
func (w *ColorStdoutWriter) WriteState(row study.RunStateRow) error {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%sSTATE%s phase=%s rings=%d/%d cases=%d degenerate=%d fit_failures=%d elapsed=%.1fs\n",
		colorCyan, colorReset, row.Phase, row.RingsDone, row.RingsTotal,
		row.Cases, row.DegenerateRings, row.FitFailures, row.ElapsedSeconds)
	return nil
}

// WriteRun prints the run metadata line to STDOUT.
func (w *ColorStdoutWriter) WriteRun(row study.RunRow) error {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%sRUN%s id=%s study=%s seed=%d rings=%d sizes=%v\n",
		colorGreen, colorReset, row.RunID, row.StudyID, row.Seed, row.Rings, row.SampleSizes)
	return nil
}
