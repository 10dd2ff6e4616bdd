package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type RunTrigger string

const (
	TriggerManual   RunTrigger = "manual"
	TriggerSchedule RunTrigger = "schedule"
	TriggerCLI      RunTrigger = "cli"
)

// SyncRun records one reconciliation pass for a seller
type SyncRun struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	Trigger    RunTrigger `json:"trigger" db:"triggered_by"`
	Status     RunStatus  `json:"status" db:"status"`
	Synced     int        `json:"synced" db:"synced"`
	Created    int        `json:"created" db:"created"`
	Updated    int        `json:"updated" db:"updated"`
	Failed     int        `json:"failed" db:"failed"`
	Error      string     `json:"error,omitempty" db:"error"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at" db:"finished_at"`
}

// ItemError describes one offer that could not be reconciled
type ItemError struct {
	SKU     string `json:"sku,omitempty"`
	OfferID string `json:"offer_id,omitempty"`
	Error   string `json:"error"`
}

type SyncSummary struct {
	Synced  int         `json:"synced"`
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Failed  int         `json:"failed"`
	Errors  []ItemError `json:"errors,omitempty"`
}
