package views

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"propwise/models"
	"propwise/tui/styles"
)

const runsPerJob = 25

type runsMsg struct {
	runs []models.ScanRun
}

type runLogsMsg struct {
	runID    int64
	logs     []models.ScanLog
	outcomes int
	failed   int
}

// Runs lists recent job runs and the log lines of the selected one.
type Runs struct {
	src           Source
	width, height int
	runs          []models.ScanRun
	selected      int
	logs          []models.ScanLog
	logsFor       int64
	outcomes      int
	failed        int
}

func NewRuns(src Source) Runs {
	return Runs{src: src}
}

func (v Runs) Init() tea.Cmd {
	return v.Refresh()
}

func (v Runs) Refresh() tea.Cmd {
	return func() tea.Msg {
		var all []models.ScanRun
		for _, job := range dashboardJobs {
			runs, _ := v.src.GetRecentRuns(job, runsPerJob)
			all = append(all, runs...)
		}
		sort.SliceStable(all, func(i, j int) bool {
			return all[i].StartedAt.After(all[j].StartedAt)
		})
		return runsMsg{all}
	}
}

func (v Runs) loadLogs(runID int64) tea.Cmd {
	return func() tea.Msg {
		logs, _ := v.src.GetRunLogs(runID)
		total, failed, _ := v.src.CountOutcomes(runID)
		return runLogsMsg{runID, logs, total, failed}
	}
}

func (v Runs) SetSize(w, h int) Runs {
	v.width = w
	v.height = h
	return v
}

// Selected returns the run under the cursor.
func (v Runs) Selected() (models.ScanRun, bool) {
	if v.selected < 0 || v.selected >= len(v.runs) {
		return models.ScanRun{}, false
	}
	return v.runs[v.selected], true
}

func (v Runs) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runsMsg:
		v.runs = msg.runs
		if v.selected >= len(v.runs) {
			v.selected = max(len(v.runs)-1, 0)
		}
		if r, ok := v.Selected(); ok {
			return v, v.loadLogs(r.ID)
		}
	case runLogsMsg:
		if r, ok := v.Selected(); ok && r.ID == msg.runID {
			v.logs = msg.logs
			v.logsFor = msg.runID
			v.outcomes = msg.outcomes
			v.failed = msg.failed
		}
	case tea.KeyMsg:
		prev := v.selected
		switch msg.String() {
		case "up", "k":
			v.selected = max(v.selected-1, 0)
		case "down", "j":
			v.selected = min(v.selected+1, max(len(v.runs)-1, 0))
		}
		if v.selected != prev {
			if r, ok := v.Selected(); ok {
				return v, v.loadLogs(r.ID)
			}
		}
	}
	return v, nil
}

func (v Runs) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("Runs"),
		v.renderTable(),
		"",
		v.renderLogs(),
	)
}

func (v Runs) renderTable() string {
	if len(v.runs) == 0 {
		return styles.Muted.Render("No runs yet")
	}

	header := fmt.Sprintf("%-16s %-15s %-10s %8s %6s %6s",
		"Started", "Job", "Status", "Checked", "Sent", "Errors")
	rows := []string{styles.TableHeader.Render(header)}

	for i, r := range v.runs {
		row := fmt.Sprintf("%-16s %-15s %-10s %8d %6d %6d",
			r.StartedAt.Format("01-02 15:04:05"),
			truncate(r.Job, 15),
			r.Status,
			r.SearchesChecked,
			r.AlertsSent,
			r.ErrorsCount,
		)
		if i == v.selected {
			row = styles.TableSelected.Render(row)
		} else {
			row = statusStyle(string(r.Status)).Render(row)
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

func (v Runs) renderLogs() string {
	width := max(v.width-4, 20)
	r, ok := v.Selected()
	if !ok {
		return ""
	}
	if v.logsFor != r.ID || len(v.logs) == 0 {
		return styles.LogBox.Width(width).Render(styles.Muted.Render("(no log lines for this run)"))
	}

	lines := []string{styles.Muted.Render(fmt.Sprintf("searches evaluated: %d, failed: %d", v.outcomes, v.failed))}
	for _, l := range v.logs {
		line := fmt.Sprintf("%s %-5s %s", l.Timestamp.Format("15:04:05"), l.Level, l.Message)
		lines = append(lines, styleLevel(l.Level, truncate(line, width-4)))
	}
	return styles.LogBox.Width(width).Render(strings.Join(lines, "\n"))
}
