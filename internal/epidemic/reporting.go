package epidemic

import "catisim/internal/config"

// AssignReports gives every case a report day and its day relative to the
// index report. The index case never samples a fresh delay: it reports with
// the ring-level delay drawn at setup, which pins its relative day to zero.
// All other cases draw from the passive-surveillance distribution when their
// onset precedes the intervention end and from the active one after.
func AssignReports(cases []Case, ring *Ring, rd config.ReportDelay, s *Sampler) []Case {
	for i := range cases {
		c := &cases[i]
		switch {
		case c.Generation == 0:
			c.ReportDay = c.OnsetDay + ring.IndexDelayDays
		case c.OnsetDay < ring.InterventionEnd:
			c.ReportDay = c.OnsetDay + s.Gamma(rd.Before)
		default:
			c.ReportDay = c.OnsetDay + s.Gamma(rd.After)
		}
		c.DaySinceIndexReport = c.ReportDay - ring.IndexReportDay
	}
	return cases
}

// FilterWindow keeps cases reported inside the follow-up window relative to
// the index report. Applying it twice changes nothing.
func FilterWindow(cases []Case, followUpDays float64) []Case {
	kept := cases[:0:0]
	for _, c := range cases {
		if c.DaySinceIndexReport >= 0 && c.DaySinceIndexReport <= followUpDays {
			kept = append(kept, c)
		}
	}
	return kept
}
