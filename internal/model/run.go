package model

import "time"

// RunKind distinguishes full pipeline runs from backfill-only runs.
type RunKind string

const (
	RunKindPipeline RunKind = "pipeline"
	RunKindBackfill RunKind = "backfill"
)

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunSummary holds the end-of-run counters reported to the user and stored
// with the run record.
type RunSummary struct {
	Discovered int `json:"discovered"`
	Duplicates int `json:"duplicates"`
	Enriched   int `json:"enriched"`
	Scored     int `json:"scored"`
	Persisted  int `json:"persisted"`
	Backfilled int `json:"backfilled"`
	Failed     int `json:"failed"`
}

// Run is one recorded pipeline or backfill execution.
type Run struct {
	ID         string      `json:"id"`
	Kind       RunKind     `json:"kind"`
	Status     RunStatus   `json:"status"`
	Summary    *RunSummary `json:"summary,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}
