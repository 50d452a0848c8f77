// Package status maintains the per-agent status document that external
// dashboards poll. The document is always rewritten whole through a
// write-temp-then-rename so observers never see partial JSON, and all
// mutations from the main task and the heartbeat are serialized through a
// single publisher mutex.
package status

import (
	"time"
)

// State is the lifecycle status of an agent supervisor.
type State string

const (
	StateInitializing   State = "initializing"
	StateActive         State = "active"
	StateAuthenticated  State = "authenticated"
	StateWaitingForAuth State = "waiting_for_auth"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
	StateStopped        State = "stopped"
)

// IsTerminal reports whether the state permits no further task work.
// Terminal agents keep heartbeating but never mutate anything else.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Document is the JSON status record for one agent. It persists across
// restarts and is never deleted.
type Document struct {
	Agent              string    `json:"agent"`
	Status             State     `json:"status"`
	Phase              string    `json:"phase,omitempty"`
	StartTime          time.Time `json:"startTime"`
	RestartCycle       int       `json:"restartCycle"`
	MaxRestarts        int       `json:"maxRestarts"`
	Heartbeat          time.Time `json:"heartbeat"`
	LastUpdate         time.Time `json:"lastUpdate"`
	LastTool           string    `json:"lastTool,omitempty"`
	FilesModified      []string  `json:"filesModified"`
	Errors             []string  `json:"errors"`
	TestsPass          int       `json:"testsPass"`
	TestsFail          int       `json:"testsFail"`
	TestPassRate       int       `json:"testPassRate"`
	TargetPassRate     int       `json:"targetPassRate"`
	WorkSummary        *string   `json:"workSummary"`
	ExperimentComplete bool      `json:"experimentComplete,omitempty"`
}

// NewDocument creates a fresh status document in the initializing state.
func NewDocument(agent string) *Document {
	now := time.Now().UTC()
	return &Document{
		Agent:         agent,
		Status:        StateInitializing,
		StartTime:     now,
		Heartbeat:     now,
		LastUpdate:    now,
		FilesModified: []string{},
		Errors:        []string{},
	}
}

// RecordFileModified appends a file name to the modified list, skipping
// consecutive duplicates from repeated tool output.
func (d *Document) RecordFileModified(name string) {
	if n := len(d.FilesModified); n > 0 && d.FilesModified[n-1] == name {
		return
	}
	d.FilesModified = append(d.FilesModified, name)
}

// RecordError appends an error line to the errors list.
func (d *Document) RecordError(msg string) {
	d.Errors = append(d.Errors, msg)
}
