package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"propwise/models"
	"propwise/tui/styles"
)

// Source is the read side of the operational store.
type Source interface {
	GetJobStats(job string) (*models.JobStats, error)
	GetRecentRuns(job string, limit int) ([]models.ScanRun, error)
	GetRunLogs(runID int64) ([]models.ScanLog, error)
	CountOutcomes(runID int64) (total, failed int, err error)
}

func statusStyle(status string) lipgloss.Style {
	switch models.RunStatus(status) {
	case models.RunStatusCompleted:
		return styles.StatusSuccess
	case models.RunStatusFailed:
		return styles.StatusError
	}
	return styles.StatusPending
}

// levelOf guesses the level of a raw log line, JSON or console formatted.
func levelOf(line string) models.LogLevel {
	l := strings.ToLower(line)
	switch {
	case strings.Contains(l, `"level":"error"`), strings.Contains(l, `"level":"fatal"`), strings.Contains(l, " err "), strings.Contains(l, " ftl "):
		return models.LogLevelError
	case strings.Contains(l, `"level":"warn"`), strings.Contains(l, " wrn "):
		return models.LogLevelWarn
	}
	return models.LogLevelInfo
}

func styleLevel(level models.LogLevel, s string) string {
	switch level {
	case models.LogLevelError:
		return styles.StatusError.Render(s)
	case models.LogLevelWarn:
		return styles.StatusPending.Render(s)
	}
	return styles.LogInfo.Render(s)
}

func relativeTime(t time.Time, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return s[:max-1] + "…"
}
