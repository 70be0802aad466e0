package storage

import (
	"time"

	"github.com/google/uuid"
)

// Run status values
const (
	RunRunning     = "running"
	RunCompleted   = "completed"
	RunInterrupted = "interrupted"
)

// RunRecord describes one execution of the checker
type RunRecord struct {
	ID         string    `json:"id"`
	Version    string    `json:"version"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Total      int       `json:"total"`
	Findings   int       `json:"findings"`
	ConfigJSON string    `json:"config,omitempty"`
}

// ObservationRecord is the persisted form of one evaluated subdomain
type ObservationRecord struct {
	Subdomain  string    `json:"subdomain"`
	State      string    `json:"state"`
	StatusCode int       `json:"status_code,omitempty"`
	Scheme     string    `json:"scheme,omitempty"`
	Attempts   int       `json:"attempts"`
	CNAMEKind  string    `json:"cname_kind,omitempty"`
	CNAME      string    `json:"cname,omitempty"`
	Error      string    `json:"error,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// FindingRecord is a persisted takeover candidate
type FindingRecord struct {
	RunID       string    `json:"run_id"`
	Subdomain   string    `json:"subdomain"`
	CNAME       string    `json:"cname"`
	Fingerprint string    `json:"fingerprint"`
	FoundAt     time.Time `json:"found_at"`
}

// GenerateRunID creates a short unique run identifier (first 8 hex chars of a UUIDv4)
func GenerateRunID() string {
	return uuid.NewString()[:8]
}
