package views

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"propwise/models"
	"propwise/tui/styles"
)

var dashboardJobs = []string{models.JobAlerts, models.JobFeaturedExpiry}

type dashboardDataMsg struct {
	stats map[string]*models.JobStats
	runs  []models.ScanRun
}

type logTailMsg struct {
	lines   []string
	modTime time.Time
}

type Dashboard struct {
	src           Source
	width, height int
	stats         map[string]*models.JobStats
	runs          []models.ScanRun
	logLines      []string
	logPath       string
	logScroll     int // scroll offset (0 = bottom/newest)
	logViewport   int
	logBuffer     int
	logModTime    time.Time
}

func NewDashboard(src Source, logPath string) Dashboard {
	if logPath == "" {
		logPath = "propwise.log"
	}
	return Dashboard{
		src:         src,
		logPath:     logPath,
		logViewport: 20,
		logBuffer:   200,
	}
}

func (d Dashboard) Init() tea.Cmd {
	return tea.Batch(d.Refresh(), d.RefreshLog())
}

func (d Dashboard) Refresh() tea.Cmd {
	return func() tea.Msg {
		stats := make(map[string]*models.JobStats, len(dashboardJobs))
		for _, job := range dashboardJobs {
			st, _ := d.src.GetJobStats(job)
			stats[job] = st
		}
		runs, _ := d.src.GetRecentRuns(models.JobAlerts, 10)
		return dashboardDataMsg{stats, runs}
	}
}

func (d Dashboard) RefreshLog() tea.Cmd {
	return func() tea.Msg {
		lines, modTime := readLastLines(d.logPath, d.logBuffer)
		return logTailMsg{lines, modTime}
	}
}

func readLastLines(path string, n int) ([]string, time.Time) {
	info, err := os.Stat(path)
	if err != nil {
		return []string{"(no log file)"}, time.Time{}
	}
	modTime := info.ModTime()

	f, err := os.Open(path)
	if err != nil {
		return []string{"(no log file)"}, time.Time{}
	}
	defer f.Close()

	var allLines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		allLines = append(allLines, scanner.Text())
	}

	if len(allLines) == 0 {
		return []string{"(empty log)"}, modTime
	}

	start := len(allLines) - n
	if start < 0 {
		start = 0
	}
	return allLines[start:], modTime
}

func (d Dashboard) SetSize(w, h int) Dashboard {
	d.width = w
	d.height = h
	return d
}

func (d Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.stats = msg.stats
		d.runs = msg.runs
	case logTailMsg:
		d.logLines = msg.lines
		d.logModTime = msg.modTime
	case tea.KeyMsg:
		maxScroll := len(d.logLines) - d.logViewport
		if maxScroll < 0 {
			maxScroll = 0
		}
		switch msg.String() {
		case "up", "k":
			d.logScroll = min(d.logScroll+1, maxScroll)
		case "down", "j":
			d.logScroll = max(d.logScroll-1, 0)
		case "pgup":
			d.logScroll = min(d.logScroll+10, maxScroll)
		case "pgdown":
			d.logScroll = max(d.logScroll-10, 0)
		case "home":
			d.logScroll = maxScroll
		case "end":
			d.logScroll = 0
		}
	}
	return d, nil
}

func (d Dashboard) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("Dashboard"),
		d.renderJobCards(),
		"",
		styles.Title.Render("Recent Alert Scans"),
		d.renderRunsTable(),
		"",
		d.renderLogTail(),
	)
}

func (d Dashboard) renderJobCards() string {
	var cards []string
	for _, job := range dashboardJobs {
		cards = append(cards, d.renderJobCard(job, d.stats[job]))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (d Dashboard) renderJobCard(job string, st *models.JobStats) string {
	status := "○ never run"
	style := styles.StatusPending
	lastRun := "never"
	runs, rate, avg := 0, 0.0, 0
	if st != nil {
		status = st.LastRunStatus
		style = statusStyle(st.LastRunStatus)
		if st.LastRunAt != nil {
			lastRun = relativeTime(*st.LastRunAt, time.Now())
		}
		runs, rate, avg = st.TotalRuns, st.SuccessRate, st.AvgRunDurationSec
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.StatValue.Render(job),
		style.Render(status),
		styles.StatLabel.Render(fmt.Sprintf("Last: %s", lastRun)),
		styles.StatLabel.Render(fmt.Sprintf("Runs: %d", runs)),
		styles.StatLabel.Render(fmt.Sprintf("Rate: %.0f%%", rate*100)),
		styles.StatLabel.Render(fmt.Sprintf("Avg: %ds", avg)),
	)
	return styles.JobCardBorder.Width(26).Render(content)
}

func (d Dashboard) renderRunsTable() string {
	if len(d.runs) == 0 {
		return styles.Muted.Render("No scans yet")
	}

	header := fmt.Sprintf("%-10s %-10s %8s %8s %6s %6s",
		"Started", "Status", "Checked", "Matched", "Sent", "Errors")
	rows := styles.TableHeader.Render(header) + "\n"

	for _, r := range d.runs {
		row := fmt.Sprintf("%-10s %s %8d %8d %6d %6d",
			r.StartedAt.Format("15:04:05"),
			statusStyle(string(r.Status)).Render(fmt.Sprintf("%-10s", r.Status)),
			r.SearchesChecked,
			r.SearchesMatched,
			r.AlertsSent,
			r.ErrorsCount,
		)
		rows += row + "\n"
	}
	return rows
}

func (d Dashboard) renderLogTail() string {
	width := max(d.width-4, 20)
	if len(d.logLines) == 0 {
		return styles.LogBox.Width(width).Render(styles.Muted.Render("(waiting for logs...)"))
	}

	total := len(d.logLines)
	endIdx := total - d.logScroll
	startIdx := max(endIdx-d.logViewport, 0)
	if endIdx > total {
		endIdx = total
	}

	var lines []string
	for _, line := range d.logLines[startIdx:endIdx] {
		lines = append(lines, styleLevel(levelOf(line), truncate(line, width-4)))
	}

	scrollInfo := styles.StatusSuccess.Render(" ● LIVE ")
	if d.logScroll > 0 {
		scrollInfo = styles.StatusPending.Render(fmt.Sprintf(" ↑%d ", d.logScroll))
	}

	header := styles.Title.Render("Daemon Log") + scrollInfo +
		styles.Muted.Render(fmt.Sprintf("[%d-%d/%d]", startIdx+1, endIdx, total))

	return styles.LogBox.Width(width).Render(header + "\n" + strings.Join(lines, "\n"))
}
