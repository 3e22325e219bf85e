package sim

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"catisim/internal/config"
	"catisim/internal/study"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries a case log line for the viewport.
type logMsg struct{ line string }

// ringMsg carries a ring log line and row data.
type ringMsg struct {
	line string
	row  study.RingRow
}

// powerMsg carries a power sweep log line.
type powerMsg struct{ line string }

// stateMsg carries a run progress update.
type stateMsg struct{ study.RunStateRow }

// adminMsg reports admin API status.
type adminMsg struct{ active bool }

const (
	maxSectionHeightPct = 0.2
	recentRingWindow    = 5
)

// TUIWriter renders study rows using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter.
func NewTUIWriter(cfg *config.StudyConfig) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	m := newTUIModel(cfg)
	p := tea.NewProgram(m, tea.WithAltScreen())
	w.program = p
	go func() {
		_ = p.Start()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// Write implements CaseWriter.
func (w *TUIWriter) Write(row study.CaseRow) error {
	line := fmt.Sprintf("%s[ring %d]%s %scase=%d%s %sgen=%d%s %sonset=%.1f%s %sreport=%.1f%s %sd=%.0f%s",
		colorGray, row.RingID, colorReset,
		colorWhite, row.CaseID, colorReset,
		colorBlue, row.Generation, colorReset,
		colorGreen, row.OnsetDay, colorReset,
		colorYellow, row.ReportDay, colorReset,
		colorCyan, row.DaySinceIndexReport, colorReset,
	)
	if row.PostIntervention {
		line += fmt.Sprintf(" %spost%s", colorMagenta, colorReset)
	}
	w.program.Send(logMsg{line: line})
	return nil
}

// WriteBatch outputs multiple case rows.
func (w *TUIWriter) WriteBatch(rows []study.CaseRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteRing implements RingWriter.
func (w *TUIWriter) WriteRing(row study.RingRow) error {
	line := fmt.Sprintf("%s[ring %d]%s %scases=%d%s %slast=%.1f%s %spop=%.0f%s %sdelay=%.0f%s %s%s%s %scat=%s%s",
		colorGray, row.RingID, colorReset,
		colorWhite, row.Cases, colorReset,
		colorYellow, row.LastReportDay, colorReset,
		colorBlue, row.Population, colorReset,
		colorCyan, row.ResponseDelayDays, colorReset,
		bucketColor(row.DelayBucket), row.DelayBucket, colorReset,
		surveillanceColor(row.Surveillance), row.Surveillance, colorReset)
	w.program.Send(ringMsg{line: line, row: row})
	return nil
}

// WriteRings outputs multiple ring summary rows.
func (w *TUIWriter) WriteRings(rows []study.RingRow) error {
	for _, r := range rows {
		_ = w.WriteRing(r)
	}
	return nil
}

// WritePower implements PowerWriter.
func (w *TUIWriter) WritePower(row study.PowerRow) error {
	powerColor := colorRed
	if row.Power >= 0.8 {
		powerColor = colorGreen
	}
	line := fmt.Sprintf("%sarm=%s%s %sn=%d%s %spower=%.3f%s %sci=[%.3f,%.3f]%s %sconverged=%d/%d%s %scoef=%.3f%s",
		colorBlue, row.Arm, colorReset,
		colorWhite, row.SampleSize, colorReset,
		powerColor, row.Power, colorReset,
		colorGray, row.PowerCILow, row.PowerCIHigh, colorReset,
		colorCyan, row.Converged, row.Replicates, colorReset,
		colorMagenta, row.MeanDelayCoef, colorReset)
	w.program.Send(powerMsg{line: line})
	return nil
}

// WritePowers outputs multiple power sweep rows.
func (w *TUIWriter) WritePowers(rows []study.PowerRow) error {
	for _, r := range rows {
		_ = w.WritePower(r)
	}
	return nil
}

// WriteState implements StateWriter.
func (w *TUIWriter) WriteState(row study.RunStateRow) error {
	w.program.Send(stateMsg{RunStateRow: row})
	return nil
}

// WriteRun logs the run metadata line.
func (w *TUIWriter) WriteRun(row study.RunRow) error {
	line := fmt.Sprintf("%sRUN%s id=%s study=%s seed=%d rings=%d sizes=%v",
		colorGreen, colorReset, row.RunID, row.StudyID, row.Seed, row.Rings, row.SampleSizes)
	w.program.Send(logMsg{line: line})
	return nil
}

// SetAdminStatus updates the admin API indicator.
func (w *TUIWriter) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	cfg          *config.StudyConfig
	table        table.Model
	vp           viewport.Model
	ringVP       viewport.Model
	powerVP      viewport.Model
	logs         []string
	ringLogs     []string
	powerLogs    []string
	state        study.RunStateRow
	admin        bool
	wrap         bool
	autoscroll   bool
	header       string
	headerHeight int
	height       int
	summary      bool
	help         bool
	showSweep    bool
	showRings    bool
	totalRings   int
	totalCases   int
	catCounts    map[string]int
	recentSizes  []int
}

func newTUIModel(cfg *config.StudyConfig) tuiModel {
	cols := []table.Column{
		{Title: "Config", Width: 20},
		{Title: "Value", Width: 10},
		{Title: "Config", Width: 20},
		{Title: "Value", Width: 10},
	}
	rows := []table.Row{
		{"Rings", fmt.Sprintf("%d", cfg.Rings), "Follow-up (d)", fmt.Sprintf("%.0f", cfg.FollowUpDays)},
		{"Population", fmt.Sprintf("%.0f", cfg.Population.Mean), "Coverage", fmt.Sprintf("%.2f", cfg.Intervention.Coverage)},
		{"Offspring Mean", fmt.Sprintf("%.2f", cfg.Offspring.Mean), "Dispersion", fmt.Sprintf("%.2f", cfg.Offspring.Dispersion)},
		{"Replicates", fmt.Sprintf("%d", cfg.Power.Replicates), "Alpha", fmt.Sprintf("%.3f", cfg.Power.Alpha)},
	}
	t := table.New(table.WithColumns(cols), table.WithRows(rows), table.WithHeight(len(rows)+1))
	vp := viewport.New(0, 0)
	ringVP := viewport.New(0, 0)
	powerVP := viewport.New(0, 0)
	m := tuiModel{
		cfg:        cfg,
		table:      t,
		vp:         vp,
		ringVP:     ringVP,
		powerVP:    powerVP,
		autoscroll: true,
		showSweep:  true,
		showRings:  true,
		catCounts:  make(map[string]int),
	}
	return m
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		tableWidth := msg.Width
		if m.showSweep {
			tableWidth = msg.Width / 2
		}
		m.table.SetWidth(tableWidth)
		m.vp.Width = msg.Width
		m.ringVP.Width = msg.Width
		m.powerVP.Width = msg.Width
		m.height = msg.Height
		m.header = m.renderHeader()
		m.headerHeight = lipgloss.Height(m.header)
		m.updateViewportHeight()
		m.refreshViewport()
		m.refreshRings()
		m.refreshPower()
	case tea.KeyMsg:
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
				m.updateViewportHeight()
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			m.header = m.renderHeader()
			m.headerHeight = lipgloss.Height(m.header)
			m.updateViewportHeight()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
				m.ringVP.GotoBottom()
				m.powerVP.GotoBottom()
			}
			return m, nil
		case "p":
			m.showSweep = !m.showSweep
			width := m.vp.Width
			if m.showSweep {
				m.table.SetWidth(width / 2)
			} else {
				m.table.SetWidth(width)
			}
			m.header = m.renderHeader()
			m.headerHeight = lipgloss.Height(m.header)
			m.updateViewportHeight()
			return m, nil
		case "n":
			m.showRings = !m.showRings
			m.updateViewportHeight()
			return m, nil
		case "t":
			m.summary = !m.summary
			m.updateViewportHeight()
			return m, nil
		case "h", "?":
			m.help = !m.help
			m.updateViewportHeight()
			return m, nil
		}
		if !m.autoscroll {
			switch msg.String() {
			case "j", "down":
				m.vp.LineDown(1)
				m.ringVP.LineDown(1)
				m.powerVP.LineDown(1)
			case "k", "up":
				m.vp.LineUp(1)
				m.ringVP.LineUp(1)
				m.powerVP.LineUp(1)
			case "pgdown", "ctrl+n":
				m.vp.LineDown(10)
				m.ringVP.LineDown(10)
				m.powerVP.LineDown(10)
			case "pgup", "ctrl+p":
				m.vp.LineUp(10)
				m.ringVP.LineUp(10)
				m.powerVP.LineUp(10)
			default:
				var cmd tea.Cmd
				m.vp, cmd = m.vp.Update(msg)
				m.ringVP, _ = m.ringVP.Update(msg)
				m.powerVP, _ = m.powerVP.Update(msg)
				return m, cmd
			}
			return m, nil
		}
		return m, nil
	case logMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > 1000 {
			m.logs = m.logs[len(m.logs)-1000:]
		}
		m.refreshViewport()
	case ringMsg:
		m.ringLogs = append(m.ringLogs, msg.line)
		if len(m.ringLogs) > 1000 {
			m.ringLogs = m.ringLogs[len(m.ringLogs)-1000:]
		}
		m.totalRings++
		m.totalCases += msg.row.Cases
		if m.catCounts == nil {
			m.catCounts = make(map[string]int)
		}
		m.catCounts[msg.row.Surveillance]++
		m.recentSizes = append(m.recentSizes, msg.row.Cases)
		if len(m.recentSizes) > recentRingWindow {
			m.recentSizes = m.recentSizes[len(m.recentSizes)-recentRingWindow:]
		}
		m.updateViewportHeight()
		m.refreshRings()
		m.refreshViewport()
	case powerMsg:
		m.powerLogs = append(m.powerLogs, msg.line)
		if len(m.powerLogs) > 1000 {
			m.powerLogs = m.powerLogs[len(m.powerLogs)-1000:]
		}
		m.updateViewportHeight()
		m.refreshPower()
		m.refreshViewport()
	case stateMsg:
		m.state = msg.RunStateRow
	case adminMsg:
		m.admin = msg.active
	}
	return m, nil
}

func (m *tuiModel) updateViewportHeight() {
	bottomHeight := lipgloss.Height(m.renderBottom())

	maxLines := m.maxSectionLines()

	ringLines := len(m.ringLogs)
	if ringLines == 0 {
		ringLines = 1
	}
	if ringLines > maxLines {
		ringLines = maxLines
	}
	m.ringVP.Height = ringLines

	powerLines := len(m.powerLogs)
	if powerLines == 0 {
		powerLines = 1
	}
	if powerLines > maxLines {
		powerLines = maxLines
	}
	m.powerVP.Height = powerLines

	ringHeight := 0
	if m.showRings {
		ringHeight = 1 + m.ringVP.Height
	}
	powerHeight := 1 + m.powerVP.Height
	h := m.height - m.headerHeight - bottomHeight - ringHeight - powerHeight - 5
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.ringVP.GotoBottom()
		m.powerVP.GotoBottom()
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshViewport() {
	var lines []string
	for _, l := range m.logs {
		if m.wrap {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshRings() {
	content := "none"
	if len(m.ringLogs) > 0 {
		content = strings.Join(m.ringLogs, "\n")
	}
	m.ringVP.SetContent(content)
	if m.autoscroll {
		m.ringVP.GotoBottom()
	}
}

func (m *tuiModel) refreshPower() {
	content := "none"
	if len(m.powerLogs) > 0 {
		content = strings.Join(m.powerLogs, "\n")
	}
	m.powerVP.SetContent(content)
	if m.autoscroll {
		m.powerVP.GotoBottom()
	}
}

func (m tuiModel) maxSectionLines() int {
	h := int(float64(m.height) * maxSectionHeightPct)
	if h < 1 {
		h = 1
	}
	return h
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	bottom := m.renderBottom()
	divider := strings.Repeat("─", m.vp.Width)
	sections := []string{
		m.header,
		divider,
		m.vp.View(),
	}
	if m.showRings {
		sections = append(sections, divider, "Rings:", m.ringVP.View())
	}
	sections = append(sections, divider, "Power:", m.powerVP.View())
	sections = append(sections, divider, bottom)
	return strings.Join(sections, "\n")
}

func (m tuiModel) renderHeader() string {
	tableView := m.table.View()
	if !m.showSweep {
		return tableView
	}
	sweepWidth := m.vp.Width/2 - 1
	sweep := renderSweepTree(m.cfg, m.wrap, sweepWidth)
	sep := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("│")
	return lipgloss.JoinHorizontal(lipgloss.Top, tableView, sep, sweep)
}

func renderSweepTree(cfg *config.StudyConfig, wrap bool, width int) string {
	var b strings.Builder
	b.WriteString("Power Sweep\n")
	for i, n := range cfg.Power.SampleSizes {
		prefix := "├─"
		if i == len(cfg.Power.SampleSizes)-1 {
			prefix = "└─"
		}
		line := fmt.Sprintf("%s %sn=%d%s × %d replicates", prefix, colorCyan, n, colorReset, cfg.Power.Replicates)
		if wrap && width > 0 {
			line = wordwrap.String(line, width)
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m tuiModel) renderSummary() string {
	avg := 0.0
	if m.totalRings > 0 {
		avg = float64(m.totalCases) / float64(m.totalRings)
	}
	var catParts []string
	for _, cat := range []string{study.SurveillanceSameDay, study.SurveillanceNextDay, study.SurveillanceLate} {
		if c, ok := m.catCounts[cat]; ok {
			catParts = append(catParts, fmt.Sprintf("%scat%s%s=%d", surveillanceColor(cat), cat, colorReset, c))
		}
	}
	cats := strings.Join(catParts, " ")
	var trendParts []string
	for _, v := range m.recentSizes {
		trendParts = append(trendParts, fmt.Sprintf("%d", v))
	}
	trend := strings.Join(trendParts, ",")
	summary := fmt.Sprintf("%sSUMMARY%s %srings=%d%s %scases=%d%s %savg_cases=%.1f%s",
		colorBlue, colorReset, colorGreen, m.totalRings, colorReset,
		colorCyan, m.totalCases, colorReset, colorMagenta, avg, colorReset)
	if cats != "" {
		summary = fmt.Sprintf("%s [%s]", summary, cats)
	}
	if trend != "" {
		summary = fmt.Sprintf("%s %strend=[%s]%s", summary, colorYellow, trend, colorReset)
	}
	return summary
}

func phaseColor(phase string) string {
	switch phase {
	case study.PhaseSimulating:
		return colorYellow
	case study.PhaseEstimating:
		return colorCyan
	case study.PhaseDone:
		return colorGreen
	}
	return colorGray
}

func (m tuiModel) renderBottom() string {
	adminColor := lipgloss.Color("9")
	if m.admin {
		adminColor = lipgloss.Color("10")
	}
	wrapColor := lipgloss.Color("9")
	if m.wrap {
		wrapColor = lipgloss.Color("10")
	}
	scrollColor := lipgloss.Color("10")
	if !m.autoscroll {
		scrollColor = lipgloss.Color("9")
	}
	adminIndicator := lipgloss.NewStyle().Foreground(adminColor).Render("●")
	wrapIndicator := lipgloss.NewStyle().Foreground(wrapColor).Render("●")
	scrollIndicator := lipgloss.NewStyle().Foreground(scrollColor).Render("●")
	summaryColor := lipgloss.Color("9")
	if m.summary {
		summaryColor = lipgloss.Color("10")
	}
	summaryIndicator := lipgloss.NewStyle().Foreground(summaryColor).Render("●")
	helpColor := lipgloss.Color("9")
	if m.help {
		helpColor = lipgloss.Color("10")
	}
	helpIndicator := lipgloss.NewStyle().Foreground(helpColor).Render("●")
	sweepColor := lipgloss.Color("10")
	if !m.showSweep {
		sweepColor = lipgloss.Color("9")
	}
	sweepIndicator := lipgloss.NewStyle().Foreground(sweepColor).Render("●")
	ringsColor := lipgloss.Color("10")
	if !m.showRings {
		ringsColor = lipgloss.Color("9")
	}
	ringsIndicator := lipgloss.NewStyle().Foreground(ringsColor).Render("●")
	state := fmt.Sprintf("%sSTATE%s %s%s%s %srings=%d/%d%s %scases=%d%s %sdegenerate=%d%s %sfit_failures=%d%s %selapsed=%.1fs%s",
		colorBlue, colorReset,
		phaseColor(m.state.Phase), m.state.Phase, colorReset,
		colorGreen, m.state.RingsDone, m.state.RingsTotal, colorReset,
		colorCyan, m.state.Cases, colorReset,
		colorYellow, m.state.DegenerateRings, colorReset,
		colorRed, m.state.FitFailures, colorReset,
		colorGray, m.state.ElapsedSeconds, colorReset)
	line := fmt.Sprintf("%s | Admin API %s | Wrap %s | Scroll %s | Summary %s | Help %s | Sweep %s | Rings %s", state, adminIndicator, wrapIndicator, scrollIndicator, summaryIndicator, helpIndicator, sweepIndicator, ringsIndicator)
	if m.summary {
		return fmt.Sprintf("%s\n%s", m.renderSummary(), line)
	}
	return line
}

func (m tuiModel) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q  quit",
		" w  toggle wrap for log lines",
		" s  toggle auto-scroll",
		" t  toggle summary footer",
		" p  toggle power sweep tree",
		" n  toggle rings section",
		" h/? toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}
	return strings.Join(lines, "\n")
}
