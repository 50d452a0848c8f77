// Package event defines the events that flow from output classification to
// the status publisher and progress log. Using a bus keeps the classifier
// free of direct dependencies on its consumers.
package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "output.tool_use", "cycle.started")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Output Classification Events
// -----------------------------------------------------------------------------

// ToolUseEvent is emitted when a tool invocation marker is seen in agent output.
type ToolUseEvent struct {
	baseEvent
	Agent string // Agent whose output contained the marker
	Tool  string // Tool name extracted from the line
	Line  string // The raw line
}

// NewToolUseEvent creates a ToolUseEvent.
func NewToolUseEvent(agent, tool, line string) ToolUseEvent {
	return ToolUseEvent{
		baseEvent: newBaseEvent("output.tool_use"),
		Agent:     agent,
		Tool:      tool,
		Line:      line,
	}
}

// FileModifiedEvent is emitted when a file-modification marker is seen.
type FileModifiedEvent struct {
	baseEvent
	Agent string
	File  string // File name extracted from the line
}

// NewFileModifiedEvent creates a FileModifiedEvent.
func NewFileModifiedEvent(agent, file string) FileModifiedEvent {
	return FileModifiedEvent{
		baseEvent: newBaseEvent("output.file_modified"),
		Agent:     agent,
		File:      file,
	}
}

// TestPassEvent is emitted when a test-pass marker is seen in agent output.
type TestPassEvent struct {
	baseEvent
	Agent string
	Line  string
}

// NewTestPassEvent creates a TestPassEvent.
func NewTestPassEvent(agent, line string) TestPassEvent {
	return TestPassEvent{
		baseEvent: newBaseEvent("output.test_pass"),
		Agent:     agent,
		Line:      line,
	}
}

// ErrorLineEvent is emitted when an error marker is seen in agent output.
type ErrorLineEvent struct {
	baseEvent
	Agent string
	Line  string
}

// NewErrorLineEvent creates an ErrorLineEvent.
func NewErrorLineEvent(agent, line string) ErrorLineEvent {
	return ErrorLineEvent{
		baseEvent: newBaseEvent("output.error"),
		Agent:     agent,
		Line:      line,
	}
}

// -----------------------------------------------------------------------------
// Cycle Lifecycle Events
// -----------------------------------------------------------------------------

// CycleStartedEvent is emitted when a restart cycle begins.
type CycleStartedEvent struct {
	baseEvent
	Agent       string
	Cycle       int // 1-based cycle number
	MaxRestarts int // Configured budget
}

// NewCycleStartedEvent creates a CycleStartedEvent.
func NewCycleStartedEvent(agent string, cycle, maxRestarts int) CycleStartedEvent {
	return CycleStartedEvent{
		baseEvent:   newBaseEvent("cycle.started"),
		Agent:       agent,
		Cycle:       cycle,
		MaxRestarts: maxRestarts,
	}
}

// CycleCompletedEvent is emitted when a restart cycle finishes.
type CycleCompletedEvent struct {
	baseEvent
	Agent    string
	Cycle    int
	PassRate int // Post-cycle pass rate percentage
}

// NewCycleCompletedEvent creates a CycleCompletedEvent.
func NewCycleCompletedEvent(agent string, cycle, passRate int) CycleCompletedEvent {
	return CycleCompletedEvent{
		baseEvent: newBaseEvent("cycle.completed"),
		Agent:     agent,
		Cycle:     cycle,
		PassRate:  passRate,
	}
}

// GateWaitingEvent is emitted for each dependency-gate poll attempt.
type GateWaitingEvent struct {
	baseEvent
	Agent      string
	Dependency string // Upstream agent being waited on
}

// NewGateWaitingEvent creates a GateWaitingEvent.
func NewGateWaitingEvent(agent, dependency string) GateWaitingEvent {
	return GateWaitingEvent{
		baseEvent:  newBaseEvent("gate.waiting"),
		Agent:      agent,
		Dependency: dependency,
	}
}

// SentinelWrittenEvent is emitted when a terminal sentinel file is created.
type SentinelWrittenEvent struct {
	baseEvent
	Agent    string
	Path     string // Sentinel file path
	Complete bool   // True for the completion sentinel, false for the blocker
}

// NewSentinelWrittenEvent creates a SentinelWrittenEvent.
func NewSentinelWrittenEvent(agent, path string, complete bool) SentinelWrittenEvent {
	return SentinelWrittenEvent{
		baseEvent: newBaseEvent("sentinel.written"),
		Agent:     agent,
		Path:      path,
		Complete:  complete,
	}
}
