package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"propwise/config"
	"propwise/models"
	"propwise/storage"
	"propwise/tui/styles"
	"propwise/tui/views"
)

type tab int

const (
	tabDashboard tab = iota
	tabRuns
)

// commandQueue is the write side of the operational store
type commandQueue interface {
	EnqueueCommand(cmd models.CommandType, params *models.CommandParams) (int64, error)
}

type model struct {
	commands      commandQueue
	activeTab     tab
	width, height int
	notification  string
	notifyUntil   time.Time

	dashboard views.Dashboard
	runs      views.Runs
}

type tickMsg time.Time
type logTickMsg time.Time

func initialModel(store *storage.SQLiteStore, logPath string) model {
	return model{
		commands:  store,
		activeTab: tabDashboard,
		dashboard: views.NewDashboard(store, logPath),
		runs:      views.NewRuns(store),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.dashboard.Init(),
		m.runs.Init(),
		tickCmd(),
		logTickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(10*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func logTickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return logTickMsg(t)
	})
}

var commandKeys = map[string]struct {
	cmd  models.CommandType
	done string
}{
	"a": {models.CmdRunAlerts, "Alert scan requested!"},
	"f": {models.CmdRunFeaturedExpiry, "Featured expiry requested!"},
	"x": {models.CmdPauseAlerts, "Scheduled scans paused"},
	"u": {models.CmdResumeAlerts, "Scheduled scans resumed"},
}

func (m model) notify(text string) model {
	m.notification = text
	m.notifyUntil = time.Now().Add(2 * time.Second)
	return m
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "d":
			m.activeTab = tabDashboard
		case "n":
			m.activeTab = tabRuns
		case "tab":
			m.activeTab = (m.activeTab + 1) % 2
		case "r":
			m = m.notify("Refreshed")
			return m, m.refreshActive()
		}
		if kc, ok := commandKeys[key]; ok {
			if _, err := m.commands.EnqueueCommand(kc.cmd, nil); err != nil {
				m = m.notify("Command failed: " + err.Error())
			} else {
				m = m.notify(kc.done)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.dashboard = m.dashboard.SetSize(msg.Width, msg.Height-4)
		m.runs = m.runs.SetSize(msg.Width, msg.Height-4)

	case tickMsg:
		cmds = append(cmds, m.refreshActive(), tickCmd())

	case logTickMsg:
		cmds = append(cmds, m.dashboard.RefreshLog(), logTickCmd())
	}

	// Key messages go to the active tab only, data messages to every view
	switch msg.(type) {
	case tea.KeyMsg:
		switch m.activeTab {
		case tabDashboard:
			next, cmd := m.dashboard.Update(msg)
			m.dashboard = next.(views.Dashboard)
			cmds = append(cmds, cmd)
		case tabRuns:
			next, cmd := m.runs.Update(msg)
			m.runs = next.(views.Runs)
			cmds = append(cmds, cmd)
		}
	default:
		nextDash, cmd1 := m.dashboard.Update(msg)
		m.dashboard = nextDash.(views.Dashboard)
		cmds = append(cmds, cmd1)

		nextRuns, cmd2 := m.runs.Update(msg)
		m.runs = nextRuns.(views.Runs)
		cmds = append(cmds, cmd2)
	}

	return m, tea.Batch(cmds...)
}

func (m model) refreshActive() tea.Cmd {
	switch m.activeTab {
	case tabDashboard:
		return m.dashboard.Refresh()
	case tabRuns:
		return m.runs.Refresh()
	}
	return nil
}

func (m model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left, m.renderTabs(), m.renderContent(), m.renderStatusBar())
}

func (m model) renderTabs() string {
	tabNames := []string{"Dashboard", "Runs"}
	var rendered []string
	for i, name := range tabNames {
		if tab(i) == m.activeTab {
			rendered = append(rendered, styles.TabActive.Render(name))
		} else {
			rendered = append(rendered, styles.TabInactive.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...) + "\n"
}

func (m model) renderContent() string {
	switch m.activeTab {
	case tabDashboard:
		return m.dashboard.View()
	case tabRuns:
		return m.runs.View()
	}
	return ""
}

func (m model) renderStatusBar() string {
	left := "d Dash  n Runs  r Refresh  a Alerts  f Featured  x Pause  u Resume  q Quit"
	right := ""
	if time.Now().Before(m.notifyUntil) {
		right = styles.Notification.Render(m.notification)
	}

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 0)

	return styles.StatusBar.Render(left) + lipgloss.NewStyle().Width(gap).Render("") + right
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", cfg.DBPath, err)
		os.Exit(1)
	}
	defer store.Close()

	p := tea.NewProgram(
		initialModel(store, cfg.LogPath),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
