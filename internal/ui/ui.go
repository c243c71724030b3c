package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sysmon/internal/config"
	"sysmon/internal/engine"
	"sysmon/internal/model"
)

// Model renders published snapshots and translates keys into core intents.
// It only ever reads the latest snapshot; it never blocks acquisition.
type Model struct {
	cfg    config.Config
	eng    *engine.Engine
	cancel func()

	latest *model.Snapshot
	width  int
	height int

	filterMode  bool
	filterInput string
	showHelp    bool
	scroll      int

	styles styles
}

func New(cfg config.Config, eng *engine.Engine, cancel func()) *Model {
	return &Model{
		cfg:    cfg,
		eng:    eng,
		cancel: cancel,
		width:  120,
		height: 40,
		styles: newStyles(cfg.Theme, !cfg.NoColor),
	}
}

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/5, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m *Model) Init() tea.Cmd { return tickCmd() }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tickMsg:
		m.latest = m.eng.Latest()
		return m, tickCmd()
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filterMode {
		switch msg.String() {
		case "enter":
			m.filterMode = false
			m.eng.ApplyIntent(engine.FilterChange{Filter: m.filterInput})
		case "esc":
			m.filterMode = false
			m.filterInput = ""
		case "backspace":
			if len(m.filterInput) > 0 {
				m.filterInput = m.filterInput[:len(m.filterInput)-1]
			}
		default:
			if msg.Type == tea.KeyRunes {
				m.filterInput += string(msg.Runes)
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.cancel()
		return m, tea.Quit
	case "s":
		m.eng.ApplyIntent(engine.CycleSort{})
	case "r":
		m.eng.ApplyIntent(engine.ToggleSortDirection{})
	case "/":
		m.filterMode = true
		m.filterInput = ""
	case "esc":
		m.showHelp = false
		m.eng.ApplyIntent(engine.FilterChange{Filter: ""})
	case "?":
		m.showHelp = !m.showHelp
	case "up", "k":
		if m.scroll > 0 {
			m.scroll--
		}
	case "down", "j":
		m.scroll++
	case "+":
		if m.latest != nil {
			m.eng.ApplyIntent(engine.IntervalChange{Interval: m.latest.Interval + 250*time.Millisecond})
		}
	case "-":
		if m.latest != nil {
			m.eng.ApplyIntent(engine.IntervalChange{Interval: m.latest.Interval - 250*time.Millisecond})
		}
	}
	return m, nil
}

// styles groups the lipgloss styles for the active theme.
type styles struct {
	title  lipgloss.Style
	subtle lipgloss.Style
	label  lipgloss.Style
	card   lipgloss.Style
	selRow lipgloss.Style
	na     lipgloss.Style
}

func newStyles(theme model.Theme, color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{
			title:  plain.Bold(true),
			subtle: plain,
			label:  plain.Bold(true),
			card:   plain.Border(lipgloss.NormalBorder()).Padding(0, 1).MarginRight(1),
			selRow: plain.Reverse(true),
			na:     plain,
		}
	}
	accent, dim, border := lipgloss.Color("45"), lipgloss.Color("244"), lipgloss.Color("60")
	if theme == model.ThemeLight {
		accent, dim, border = lipgloss.Color("25"), lipgloss.Color("240"), lipgloss.Color("110")
	}
	return styles{
		title:  lipgloss.NewStyle().Bold(true).Foreground(accent),
		subtle: lipgloss.NewStyle().Foreground(dim),
		label:  lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true),
		card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1).
			MarginRight(1),
		selRow: lipgloss.NewStyle().Reverse(true),
		na:     lipgloss.NewStyle().Foreground(dim).Italic(true),
	}
}

const (
	gaugeFill  = "█"
	gaugeEmpty = "░"
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

func (m *Model) View() string {
	if m.latest == nil {
		return m.styles.subtle.Render("gathering first sample...")
	}
	if m.showHelp {
		return m.helpView()
	}
	snap := m.latest
	s := snap.Sample

	header := m.styles.title.Render("sysmon") + "  " +
		m.styles.subtle.Render(fmt.Sprintf("%s  %s %s  up %s  load %.2f %.2f %.2f  %s",
			s.Host.Hostname, s.Host.OS, s.Host.OSVersion,
			formatUptime(s.Host.Uptime),
			s.Host.Load1, s.Host.Load5, s.Host.Load15,
			snap.At.Format("15:04:05")))

	cpuBody := gaugeBar(s.CPUTotal, 28)
	if sp := seriesFor(snap, engine.SeriesCPU); sp != "" {
		cpuBody += "\n" + sp
	}
	if !s.CPUOK {
		cpuBody = m.styles.na.Render("N/A")
	}
	cpuCard := m.card("CPU", cpuBody)

	memBody := fmt.Sprintf("%s\n%.1f/%.1f GiB | swap %3.0f%%",
		gaugeBar(s.MemPercent, 28),
		bytesToGiB(s.Memory.Used), bytesToGiB(s.Memory.Total),
		pct(s.Memory.SwapUsed, s.Memory.SwapTotal))
	if sp := seriesFor(snap, engine.SeriesMem); sp != "" {
		memBody += "\n" + sp
	}
	if !s.MemOK {
		memBody = m.styles.na.Render("N/A")
	}
	memCard := m.card("Memory", memBody)

	netCard := m.card("Network", m.netBody(snap))
	diskCard := m.card("Disk", m.diskBody(snap))
	tempCard := m.card("Temperature", m.tempBody(snap))

	line1 := lipgloss.JoinHorizontal(lipgloss.Top, cpuCard, memCard, netCard, diskCard, tempCard)
	table := m.card(m.procTitle(snap), m.procTable(snap))
	footer := m.footer(snap)

	return lipgloss.JoinVertical(lipgloss.Left, header, line1, table, footer)
}

func (m *Model) netBody(snap *model.Snapshot) string {
	s := snap.Sample
	if !s.NetOK {
		return m.styles.na.Render("N/A")
	}
	if len(s.Ifaces) == 0 {
		return m.styles.subtle.Render("no interfaces")
	}
	lines := make([]string, 0, len(s.Ifaces))
	for _, ifc := range s.Ifaces {
		line := fmt.Sprintf("%-8s ↓%9s/s ↑%9s/s",
			truncate(ifc.Name, 8), formatBytes(ifc.RxPerSec), formatBytes(ifc.TxPerSec))
		if sp := seriesFor(snap, engine.IfaceRxID(ifc.Name)); sp != "" {
			line += "  " + sp
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) diskBody(snap *model.Snapshot) string {
	s := snap.Sample
	if !s.DiskOK {
		return m.styles.na.Render("N/A")
	}
	if len(s.Disks) == 0 {
		return m.styles.subtle.Render("no disks")
	}
	lines := make([]string, 0, len(s.Disks))
	for _, d := range s.Disks {
		lines = append(lines, fmt.Sprintf("%-10s %3.0f%% R%9s/s W%9s/s",
			truncate(d.Mount, 10), d.UsedPercent,
			formatBytes(d.ReadPerSec), formatBytes(d.WritePerSec)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) tempBody(snap *model.Snapshot) string {
	s := snap.Sample
	if !s.TempsOK || len(s.Temps) == 0 {
		return m.styles.na.Render("N/A")
	}
	lines := make([]string, 0, len(s.Temps))
	for _, t := range s.Temps {
		lines = append(lines, fmt.Sprintf("%-14s %5.1f°%s", truncate(t.Label, 14), t.Value, t.Unit))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) procTitle(snap *model.Snapshot) string {
	view := snap.Processes
	dir := "↑"
	if view.Descending {
		dir = "↓"
	}
	title := fmt.Sprintf("Processes (%d/%d) sort:%s%s", len(view.Rows), view.Total, view.Key, dir)
	if view.Filter != "" {
		title += fmt.Sprintf(" filter:%q", view.Filter)
	}
	return title
}

func (m *Model) procTable(snap *model.Snapshot) string {
	view := snap.Processes
	if !snap.Sample.ProcsOK {
		return m.styles.na.Render("N/A")
	}
	if len(view.Rows) == 0 {
		return m.styles.subtle.Render("no matching processes")
	}

	rowsAvail := m.height - 16
	if rowsAvail < 5 {
		rowsAvail = 5
	}
	if m.scroll > len(view.Rows)-rowsAvail {
		m.scroll = len(view.Rows) - rowsAvail
	}
	if m.scroll < 0 {
		m.scroll = 0
	}
	end := m.scroll + rowsAvail
	if end > len(view.Rows) {
		end = len(view.Rows)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%7s %-10s %-20s %-3s %6s %6s %9s\n",
		"pid", "user", "name", "st", "cpu%", "mem%", "rss")
	for _, r := range view.Rows[m.scroll:end] {
		fmt.Fprintf(&b, "%7d %-10s %-20s %-3s %6.1f %6.1f %9s\n",
			r.PID, truncate(r.User, 10), truncate(r.Name, 20), truncate(r.State, 3),
			r.CPUPercent, r.MemPercent, formatBytes(float64(r.MemRSS)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) footer(snap *model.Snapshot) string {
	if m.filterMode {
		return m.styles.label.Render("filter: ") + m.filterInput + "▏"
	}
	return m.styles.subtle.Render(fmt.Sprintf(
		"q quit  s sort  r reverse  / filter  ? help  +/- interval (%v)", snap.Interval))
}

func (m *Model) helpView() string {
	help := []string{
		m.styles.title.Render("sysmon keys"),
		"",
		"  q, ctrl+c   quit",
		"  s           cycle sort column (cpu → mem → pid → name)",
		"  r           reverse sort direction",
		"  /           enter process name filter (enter apply, esc cancel)",
		"  esc         clear filter / close help",
		"  j/k, ↓/↑    scroll process table",
		"  +/-         grow/shrink refresh interval by 250ms",
		"  ?           toggle this help",
	}
	return m.card("Help", strings.Join(help, "\n"))
}

func (m *Model) card(title, body string) string {
	return m.styles.card.Render(m.styles.label.Render(title) + "\n" + body)
}

// seriesFor renders the sparkline for one history series id, or "".
func seriesFor(snap *model.Snapshot, id string) string {
	for _, s := range snap.History {
		if s.ID == id {
			return sparkline(s.Values, 28)
		}
	}
	return ""
}

// sparkline draws values oldest-first, scaled to the series maximum.
func sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	max := 0.0
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	var b strings.Builder
	for _, v := range values {
		idx := 0
		if max > 0 {
			idx = int(v / max * float64(len(sparkRunes)-1))
		}
		if idx >= len(sparkRunes) {
			idx = len(sparkRunes) - 1
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

// Helpers

func gaugeBar(pctVal float64, width int) string {
	if pctVal < 0 {
		pctVal = 0
	}
	if pctVal > 100 {
		pctVal = 100
	}
	filled := int((pctVal / 100) * float64(width))
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %5.1f%%",
		strings.Repeat(gaugeFill, filled),
		strings.Repeat(gaugeEmpty, width-filled),
		pctVal)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func pct(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(used) * 100 / float64(total)
}

func bytesToGiB(b uint64) float64 { return float64(b) / (1024 * 1024 * 1024) }

func formatBytes(v float64) string {
	switch {
	case v >= 1<<30:
		return fmt.Sprintf("%.1fGiB", v/(1<<30))
	case v >= 1<<20:
		return fmt.Sprintf("%.1fMiB", v/(1<<20))
	case v >= 1<<10:
		return fmt.Sprintf("%.1fKiB", v/(1<<10))
	default:
		return fmt.Sprintf("%.0fB", v)
	}
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Minute)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dh%02dm", hours, mins)
}

// Run starts the Bubble Tea program over an already-running engine.
func Run(cfg config.Config, eng *engine.Engine, cancel func()) error {
	prog := tea.NewProgram(New(cfg, eng, cancel), tea.WithAltScreen())
	_, err := prog.Run()
	return err
}
