// Package api contains the JSON structs served by the watch-mode status server.
package api

import "time"

// HealthResponse is returned by the liveness and readiness probes.
type HealthResponse struct {
	Status string `json:"status"`
}

// RunSummary describes the most recent run of one reconciliation variant.
type RunSummary struct {
	RunID           string    `json:"run_id"`
	Variant         string    `json:"variant"`
	DryRun          bool      `json:"dry_run"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	Inserted        int       `json:"inserted"`
	NotFound        int       `json:"not_found"`
	AlreadyExisting int       `json:"already_existing"`
	Failed          int       `json:"failed"`
	CoursesChecked  int       `json:"courses_checked"`
	// Error is set when the run aborted, e.g. rule loading failed.
	Error    string `json:"error,omitempty"`
	Notified bool   `json:"notified"`
}

// RunsResponse is the response body for GET /runs/last.
type RunsResponse struct {
	Runs []RunSummary `json:"runs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
