package scanner

import (
	"context"
	"time"
)

// Status is the scan outcome state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusScanning Status = "scanning"
	StatusClean    Status = "clean"
	StatusInfected Status = "infected"
	StatusError    Status = "error"
	StatusSkipped  Status = "skipped"
)

// ThreatLevel classifies the severity of a detected signature.
type ThreatLevel string

const (
	ThreatLevelLow      ThreatLevel = "low"
	ThreatLevelMedium   ThreatLevel = "medium"
	ThreatLevelHigh     ThreatLevel = "high"
	ThreatLevelCritical ThreatLevel = "critical"
)

// Result is the immutable outcome of one scan.
type Result struct {
	ID          string
	Status      Status
	ThreatName  string
	ThreatLevel ThreatLevel
	Error       string
	Duration    time.Duration
	ScannedAt   time.Time
}

// Infected reports whether the scan found a signature.
func (r Result) Infected() bool {
	return r.Status == StatusInfected
}

// Engine is the external scanning collaborator contract. StreamScan returns
// the matched signature name, or an empty string for clean content.
type Engine interface {
	StreamScan(ctx context.Context, content []byte) (string, error)
	Ping(ctx context.Context) bool
	Version(ctx context.Context) (string, error)
}

// Action is the policy response to an infected file.
type Action string

const (
	ActionQuarantine Action = "quarantine" // move aside and flag
	ActionDelete     Action = "delete"     // hard-delete immediately
	ActionNotify     Action = "notify"     // keep, alert operators
)
