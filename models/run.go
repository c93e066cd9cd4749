package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial" // at least one source failed
	RunStatusFailed    RunStatus = "failed"
)

// SourceStats is the outcome of one source inside a tick.
type SourceStats struct {
	SourceID      string `json:"source_id"`
	ListingsFound int    `json:"listings_found"`
	ListingsNew   int    `json:"listings_new"`
	Notified      int    `json:"notified"`
	SendErrors    int    `json:"send_errors"`
	CardsSkipped  int    `json:"cards_skipped"`
	Error         string `json:"error,omitempty"`
}

// TickRun records one "fetch all sources, diff, notify" pass for a user.
type TickRun struct {
	ID         uuid.UUID     `json:"id" db:"id"`
	UserID     int64         `json:"user_id" db:"user_id"`
	StartedAt  time.Time     `json:"started_at" db:"started_at"`
	FinishedAt *time.Time    `json:"finished_at" db:"finished_at"`
	Status     RunStatus     `json:"status" db:"status"`
	Sources    []SourceStats `json:"sources" db:"sources"`
}

func (r *TickRun) TotalNew() int {
	n := 0
	for _, s := range r.Sources {
		n += s.ListingsNew
	}
	return n
}

func (r *TickRun) SourcesJSON() []byte {
	data, _ := json.Marshal(r.Sources)
	return data
}
