// Package layout defines the shared on-disk namespace that farmhand agents
// coordinate through. Every path is keyed by agent identity; sibling
// supervisor processes point at the same root so that completion sentinels
// written by one agent are visible to its dependents.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
)

// Subdirectory names under the state root.
const (
	ProgressDirName = "progress"
	LogsDirName     = "logs"
	StatusDirName   = "status"
	CountersDirName = "restart_counters"
	ResultsDirName  = "test-results"
	HandoffsDirName = "handoffs"
	BlockersDirName = "blockers"
	FeedbackDirName = "feedback"
)

// Layout resolves agent-keyed file paths under a single state root.
type Layout struct {
	root string
}

// New creates a Layout rooted at the given directory.
func New(root string) Layout {
	return Layout{root: root}
}

// Root returns the state root directory.
func (l Layout) Root() string {
	return l.root
}

// EnsureDirs creates the full directory skeleton under the root.
func (l Layout) EnsureDirs() error {
	for _, sub := range []string{
		ProgressDirName, LogsDirName, StatusDirName, CountersDirName,
		ResultsDirName, HandoffsDirName, BlockersDirName, FeedbackDirName,
	} {
		if err := os.MkdirAll(filepath.Join(l.root, sub), 0755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", sub, err)
		}
	}
	return nil
}

// StatusDir returns the directory holding status documents.
func (l Layout) StatusDir() string {
	return filepath.Join(l.root, StatusDirName)
}

// HandoffsDir returns the directory holding completion sentinels.
func (l Layout) HandoffsDir() string {
	return filepath.Join(l.root, HandoffsDirName)
}

// StatusFile returns the status document path for an agent.
func (l Layout) StatusFile(agent string) string {
	return filepath.Join(l.root, StatusDirName, agent+".json")
}

// CounterFile returns the restart counter path for an agent.
func (l Layout) CounterFile(agent string) string {
	return filepath.Join(l.root, CountersDirName, agent+"_count")
}

// ProgressFile returns the human-readable progress log path for an agent.
func (l Layout) ProgressFile(agent string) string {
	return filepath.Join(l.root, ProgressDirName, agent+".md")
}

// RawLogFile returns the timestamped raw output log path for an agent.
func (l Layout) RawLogFile(agent string) string {
	return filepath.Join(l.root, LogsDirName, agent+".log")
}

// ResultsFile returns the latest raw test output path for an agent.
func (l Layout) ResultsFile(agent string) string {
	return filepath.Join(l.root, ResultsDirName, agent+"-latest.txt")
}

// HandoffFile returns the completion sentinel path for an agent.
func (l Layout) HandoffFile(agent string) string {
	return filepath.Join(l.root, HandoffsDirName, agent+"-complete.md")
}

// BlockerFile returns the blocker sentinel path for an agent, written
// instead of the completion sentinel when the budget runs out below target.
func (l Layout) BlockerFile(agent string) string {
	return filepath.Join(l.root, BlockersDirName, agent+"-incomplete.md")
}

// FeedbackFile returns the externally-authored improvements file path for
// an agent. The supervisor consumes it if present at cycle start.
func (l Layout) FeedbackFile(agent string) string {
	return filepath.Join(l.root, FeedbackDirName, agent+"-improvements.md")
}
