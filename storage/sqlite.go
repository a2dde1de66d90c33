package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"propwise/models"
)

// SQLiteStore is the daemon's local operational database: job runs, their
// logs, per-search outcomes and operator commands.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scan_runs (
		id INTEGER PRIMARY KEY,
		job TEXT NOT NULL,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		searches_checked INTEGER DEFAULT 0,
		searches_matched INTEGER DEFAULT 0,
		alerts_sent INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS scan_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		source TEXT
	);

	CREATE TABLE IF NOT EXISTS search_outcomes (
		id INTEGER PRIMARY KEY,
		run_id INTEGER NOT NULL,
		search_id TEXT NOT NULL,
		matched INTEGER DEFAULT 0,
		sent BOOLEAN DEFAULT FALSE,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS job_stats (
		job TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_runs INTEGER,
		success_rate REAL,
		avg_run_duration_sec INTEGER
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scan_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_job ON scan_runs(job, started_at);
	CREATE INDEX IF NOT EXISTS idx_outcomes_run ON search_outcomes(run_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_search ON search_outcomes(search_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ============================================================================
// Runs
// ============================================================================

func (s *SQLiteStore) CreateRun(run *models.ScanRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO scan_runs (job, started_at, status, searches_checked, searches_matched, alerts_sent, errors_count)
		VALUES (?, ?, ?, 0, 0, 0, 0)`,
		run.Job, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ScanRun) error {
	_, err := s.db.Exec(`
		UPDATE scan_runs SET finished_at = ?, status = ?, searches_checked = ?,
			searches_matched = ?, alerts_sent = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.SearchesChecked, run.SearchesMatched,
		run.AlertsSent, run.ErrorsCount, run.ID)
	return err
}

func (s *SQLiteStore) GetRecentRuns(job string, limit int) ([]models.ScanRun, error) {
	rows, err := s.db.Query(`
		SELECT id, job, started_at, finished_at, status, searches_checked, searches_matched, alerts_sent, errors_count
		FROM scan_runs WHERE job = ? ORDER BY started_at DESC, id DESC LIMIT ?`, job, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ScanRun
	for rows.Next() {
		var r models.ScanRun
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Job, &r.StartedAt, &finished, &r.Status,
			&r.SearchesChecked, &r.SearchesMatched, &r.AlertsSent, &r.ErrorsCount); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, source string) error {
	_, err := s.db.Exec(`
		INSERT INTO scan_logs (run_id, timestamp, level, message, source)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, source)
	return err
}

func (s *SQLiteStore) GetRunLogs(runID int64) ([]models.ScanLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, source
		FROM scan_logs WHERE run_id = ? ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ScanLog
	for rows.Next() {
		var l models.ScanLog
		var rid sql.NullInt64
		if err := rows.Scan(&l.ID, &rid, &l.Timestamp, &l.Level, &l.Message, &l.Source); err != nil {
			return nil, err
		}
		if rid.Valid {
			l.RunID = &rid.Int64
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *SQLiteStore) RecordOutcome(runID int64, searchID string, matched int, sent bool, errMsg string) error {
	var e sql.NullString
	if errMsg != "" {
		e = sql.NullString{String: errMsg, Valid: true}
	}
	_, err := s.db.Exec(`
		INSERT INTO search_outcomes (run_id, search_id, matched, sent, error)
		VALUES (?, ?, ?, ?, ?)`,
		runID, searchID, matched, sent, e)
	return err
}

func (s *SQLiteStore) CountOutcomes(runID int64) (total, failed int, err error) {
	err = s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN error IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM search_outcomes WHERE run_id = ?`, runID).Scan(&total, &failed)
	return total, failed, err
}

func (s *SQLiteStore) UpdateJobStats(job string) error {
	_, err := s.db.Exec(`
		INSERT INTO job_stats (job, last_run_at, last_run_status, total_runs, success_rate, avg_run_duration_sec)
		SELECT
			?,
			(SELECT started_at FROM scan_runs WHERE job = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT status FROM scan_runs WHERE job = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT COUNT(*) FROM scan_runs WHERE job = ?),
			(SELECT CAST(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS REAL) /
				NULLIF(COUNT(*), 0) FROM scan_runs WHERE job = ?),
			(SELECT AVG(CAST((julianday(finished_at) - julianday(started_at)) * 86400 AS INTEGER))
				FROM scan_runs WHERE job = ? AND finished_at IS NOT NULL)
		ON CONFLICT(job) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_runs = excluded.total_runs,
			success_rate = excluded.success_rate,
			avg_run_duration_sec = excluded.avg_run_duration_sec`,
		job, job, job, job, job, job)
	return err
}

func (s *SQLiteStore) GetJobStats(job string) (*models.JobStats, error) {
	var st models.JobStats
	var lastRun sql.NullTime
	var status sql.NullString
	var rate sql.NullFloat64
	var avg sql.NullInt64

	err := s.db.QueryRow(`
		SELECT job, last_run_at, last_run_status, COALESCE(total_runs, 0), success_rate, avg_run_duration_sec
		FROM job_stats WHERE job = ?`, job).Scan(&st.Job, &lastRun, &status, &st.TotalRuns, &rate, &avg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lastRun.Valid {
		st.LastRunAt = &lastRun.Time
	}
	st.LastRunStatus = status.String
	st.SuccessRate = rate.Float64
	st.AvgRunDurationSec = int(avg.Int64)
	return &st, nil
}

func (s *SQLiteStore) GetLastRunTime(job string) (time.Time, error) {
	var lastRun time.Time
	err := s.db.QueryRow(`
		SELECT started_at FROM scan_runs WHERE job = ? ORDER BY started_at DESC LIMIT 1`, job).Scan(&lastRun)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	return lastRun, err
}

// ============================================================================
// Commands
// ============================================================================

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params *models.CommandParams) (int64, error) {
	var raw []byte
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return 0, err
		}
		raw = b
	}
	result, err := s.db.Exec(`
		INSERT INTO commands (command, params, created_at) VALUES (?, ?, ?)`,
		cmd, nullableJSON(raw), time.Now())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		var processed sql.NullTime
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &processed); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		if processed.Valid {
			cmd.ProcessedAt = &processed.Time
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// ResetAllData clears all SQLite operational tables
func (s *SQLiteStore) ResetAllData() error {
	tables := []string{
		"scan_logs",
		"search_outcomes",
		"scan_runs",
		"job_stats",
		"commands",
	}

	for _, table := range tables {
		_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	return nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
