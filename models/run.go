package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

const (
	JobAlerts         = "alerts"
	JobFeaturedExpiry = "featured_expiry"
)

// ScanRun records one pass of a background job. The match counters are only
// filled by the alert scanner.
type ScanRun struct {
	ID              int64      `json:"id" db:"id"`
	Job             string     `json:"job" db:"job"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time `json:"finished_at" db:"finished_at"`
	Status          RunStatus  `json:"status" db:"status"`
	SearchesChecked int        `json:"searches_checked" db:"searches_checked"`
	SearchesMatched int        `json:"searches_matched" db:"searches_matched"`
	AlertsSent      int        `json:"alerts_sent" db:"alerts_sent"`
	ErrorsCount     int        `json:"errors_count" db:"errors_count"`
}

type JobStats struct {
	Job               string     `json:"job" db:"job"`
	LastRunAt         *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus     string     `json:"last_run_status" db:"last_run_status"`
	TotalRuns         int        `json:"total_runs" db:"total_runs"`
	SuccessRate       float64    `json:"success_rate" db:"success_rate"`
	AvgRunDurationSec int        `json:"avg_run_duration_sec" db:"avg_run_duration_sec"`
}
