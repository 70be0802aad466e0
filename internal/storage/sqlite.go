package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteStorage persists runs, observations and findings
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage opens (or creates) the database at dbPath
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if strings.HasPrefix(dbPath, "~/") {
		home, _ := os.UserHomeDir()
		dbPath = filepath.Join(home, dbPath[2:])
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// Evaluations report concurrently; a single connection serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStorage{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		version TEXT,
		status TEXT NOT NULL DEFAULT 'running',
		started_at TEXT NOT NULL,
		finished_at TEXT,
		total INTEGER DEFAULT 0,
		findings INTEGER DEFAULT 0,
		config_json TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		subdomain TEXT NOT NULL,
		state TEXT NOT NULL,
		status_code INTEGER,
		scheme TEXT,
		attempts INTEGER,
		cname_kind TEXT,
		cname TEXT,
		error TEXT,
		observed_at TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_observations_run ON observations(run_id);
	CREATE INDEX IF NOT EXISTS idx_observations_subdomain ON observations(subdomain);

	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		subdomain TEXT NOT NULL,
		cname TEXT NOT NULL,
		fingerprint TEXT,
		found_at TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE,
		UNIQUE(run_id, subdomain, cname)
	);
	CREATE INDEX IF NOT EXISTS idx_findings_subdomain ON findings(subdomain);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// Close closes the database
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// CreateRun records the start of a run. config is stored as JSON.
func (s *SQLiteStorage) CreateRun(ctx context.Context, runID, version string, config interface{}) error {
	configJSON, _ := json.Marshal(config)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, version, status, started_at, config_json)
		VALUES (?, ?, ?, ?, ?)
	`, runID, version, RunRunning, formatTime(time.Now()), string(configJSON))
	return err
}

// CompleteRun stores the final status and counts of a run
func (s *SQLiteStorage) CompleteRun(ctx context.Context, runID, status string, total, findings int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, finished_at = ?, total = ?, findings = ?
		WHERE id = ?
	`, status, formatTime(time.Now()), total, findings, runID)
	return err
}

// SaveObservation stores the outcome for one subdomain
func (s *SQLiteStorage) SaveObservation(ctx context.Context, runID string, r ObservationRecord) error {
	if r.ObservedAt.IsZero() {
		r.ObservedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO observations (run_id, subdomain, state, status_code, scheme, attempts, cname_kind, cname, error, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, r.Subdomain, r.State, r.StatusCode, r.Scheme, r.Attempts, r.CNAMEKind, r.CNAME, r.Error, formatTime(r.ObservedAt))
	return err
}

// SaveFinding stores a takeover candidate; repeated findings in a run are ignored
func (s *SQLiteStorage) SaveFinding(ctx context.Context, r FindingRecord) error {
	if r.FoundAt.IsZero() {
		r.FoundAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO findings (run_id, subdomain, cname, fingerprint, found_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.RunID, r.Subdomain, r.CNAME, r.Fingerprint, formatTime(r.FoundAt))
	return err
}

// GetFindings returns findings of one run, or of every run when runID is empty
func (s *SQLiteStorage) GetFindings(ctx context.Context, runID string) ([]FindingRecord, error) {
	query := `SELECT run_id, subdomain, cname, fingerprint, found_at FROM findings`
	var args []interface{}
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY found_at, subdomain`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FindingRecord
	for rows.Next() {
		var r FindingRecord
		var fingerprint sql.NullString
		var foundAt string
		if err := rows.Scan(&r.RunID, &r.Subdomain, &r.CNAME, &fingerprint, &foundAt); err != nil {
			return nil, err
		}
		r.Fingerprint = fingerprint.String
		r.FoundAt = parseTime(foundAt)
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetObservations returns the observations of a run ordered by subdomain
func (s *SQLiteStorage) GetObservations(ctx context.Context, runID string) ([]ObservationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subdomain, state, status_code, scheme, attempts, cname_kind, cname, error, observed_at
		FROM observations
		WHERE run_id = ?
		ORDER BY subdomain
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ObservationRecord
	for rows.Next() {
		var r ObservationRecord
		var scheme, cnameKind, cname, errMsg sql.NullString
		var statusCode, attempts sql.NullInt64
		var observedAt string
		if err := rows.Scan(&r.Subdomain, &r.State, &statusCode, &scheme, &attempts, &cnameKind, &cname, &errMsg, &observedAt); err != nil {
			return nil, err
		}
		r.StatusCode = int(statusCode.Int64)
		r.Attempts = int(attempts.Int64)
		r.Scheme = scheme.String
		r.CNAMEKind = cnameKind.String
		r.CNAME = cname.String
		r.Error = errMsg.String
		r.ObservedAt = parseTime(observedAt)
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListRuns returns the most recent runs first
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, version, status, started_at, finished_at, total, findings, config_json
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RunRecord
	for rows.Next() {
		var r RunRecord
		var version, finishedAt, configJSON sql.NullString
		var startedAt string
		if err := rows.Scan(&r.ID, &version, &r.Status, &startedAt, &finishedAt, &r.Total, &r.Findings, &configJSON); err != nil {
			return nil, err
		}
		r.Version = version.String
		r.StartedAt = parseTime(startedAt)
		if finishedAt.Valid {
			r.FinishedAt = parseTime(finishedAt.String)
		}
		r.ConfigJSON = configJSON.String
		results = append(results, r)
	}
	return results, rows.Err()
}

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
