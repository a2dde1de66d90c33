package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"propwise/models"
	"propwise/services"
)

// RunStore is the operational bookkeeping kept in the local SQLite database
type RunStore interface {
	CreateRun(run *models.ScanRun) (int64, error)
	UpdateRun(run *models.ScanRun) error
	UpdateJobStats(job string) error
}

type OutcomeStore interface {
	RunStore
	Log(runID *int64, level models.LogLevel, message, source string) error
	RecordOutcome(runID int64, searchID string, matched int, sent bool, errMsg string) error
}

type Scanner interface {
	Scan(ctx context.Context) (*services.ScanResult, error)
}

// AlertWorker runs saved-search alert passes and records each one as a run
type AlertWorker struct {
	scanner Scanner
	ops     OutcomeStore
	now     func() time.Time
}

func NewAlertWorker(scanner Scanner, ops OutcomeStore) *AlertWorker {
	return &AlertWorker{
		scanner: scanner,
		ops:     ops,
		now:     time.Now,
	}
}

// RunOnce executes one alert pass.
func (w *AlertWorker) RunOnce(ctx context.Context) (*services.ScanResult, error) {
	run := &models.ScanRun{Job: models.JobAlerts, StartedAt: w.now(), Status: models.RunStatusRunning}
	runID, err := w.ops.CreateRun(run)
	if err != nil {
		log.Warn().Err(err).Msg("alert worker: could not record run")
	}
	run.ID = runID

	w.logRun(run, models.LogLevelInfo, "alert scan started")

	result, scanErr := w.scanner.Scan(ctx)
	if result != nil {
		run.SearchesChecked = result.Checked
		run.SearchesMatched = result.Matched
		run.AlertsSent = result.Sent
		run.ErrorsCount = result.Errors
		w.recordOutcomes(run, result.Outcomes)
	}

	switch {
	case scanErr != nil:
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		w.logRun(run, models.LogLevelError, fmt.Sprintf("alert scan failed: %v", scanErr))
	case run.ErrorsCount > 0:
		run.Status = models.RunStatusPartial
	default:
		run.Status = models.RunStatusCompleted
	}

	w.logRun(run, models.LogLevelInfo, fmt.Sprintf("checked %d searches, %d matched, %d alerts sent, %d errors",
		run.SearchesChecked, run.SearchesMatched, run.AlertsSent, run.ErrorsCount))

	finished := w.now()
	run.FinishedAt = &finished
	if run.ID != 0 {
		if err := w.ops.UpdateRun(run); err != nil {
			log.Warn().Err(err).Msg("alert worker: could not update run")
		}
		if err := w.ops.UpdateJobStats(run.Job); err != nil {
			log.Warn().Err(err).Msg("alert worker: could not update job stats")
		}
	}

	return result, scanErr
}

func (w *AlertWorker) recordOutcomes(run *models.ScanRun, outcomes []services.SearchOutcome) {
	if run.ID == 0 {
		return
	}
	for _, o := range outcomes {
		errMsg := ""
		if o.Err != nil {
			errMsg = o.Err.Error()
			w.logRun(run, models.LogLevelWarn, fmt.Sprintf("search %q: %s", o.Name, errMsg))
		}
		if err := w.ops.RecordOutcome(run.ID, o.SearchID.String(), o.Matched, o.Sent, errMsg); err != nil {
			log.Warn().Err(err).Str("search_id", o.SearchID.String()).Msg("alert worker: could not record outcome")
		}
	}
}

func (w *AlertWorker) logRun(run *models.ScanRun, level models.LogLevel, msg string) {
	if run.ID == 0 {
		return
	}
	id := run.ID
	if err := w.ops.Log(&id, level, msg, "alerts"); err != nil {
		log.Warn().Err(err).Msg("alert worker: could not write run log")
	}
}
