package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdRunAlerts         CommandType = "run_alerts"
	CmdRunFeaturedExpiry CommandType = "run_featured_expiry"
	CmdPauseAlerts       CommandType = "pause_alerts"
	CmdResumeAlerts      CommandType = "resume_alerts"
)

type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	Limit int `json:"limit,omitempty"`
}
