package workers

import "propwise/models"

// LogFunc writes an operator-visible line to the scan_logs table
type LogFunc func(level models.LogLevel, source, message string)

// NoOpLogger does nothing (default)
var NoOpLogger LogFunc = func(level models.LogLevel, source, message string) {}
