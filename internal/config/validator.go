package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "run.max_restarts")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// agentNameRegex validates agent identity characters. Agent names become
// file name components, so they are restricted to a safe subset.
var agentNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidBackends returns the list of supported backend names
func ValidBackends() []string {
	return []string{"claude", "codex"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found. An empty agent name is allowed here; commands that require
// an identity enforce it at startup since dashboard/status commands do not.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Agent.Name != "" && !agentNameRegex.MatchString(c.Agent.Name) {
		errors = append(errors, ValidationError{
			Field:   "agent.name",
			Value:   c.Agent.Name,
			Message: "must start with a letter and contain only letters, digits, hyphens, and underscores",
		})
	}

	for _, dep := range c.Agent.DependsOn {
		if !agentNameRegex.MatchString(dep) {
			errors = append(errors, ValidationError{
				Field:   "agent.depends_on",
				Value:   dep,
				Message: "dependency names must start with a letter and contain only letters, digits, hyphens, and underscores",
			})
		}
	}

	if c.Run.MaxRestarts < 1 {
		errors = append(errors, ValidationError{
			Field:   "run.max_restarts",
			Value:   c.Run.MaxRestarts,
			Message: "must be at least 1",
		})
	}

	if c.Run.TargetPassRate < 0 || c.Run.TargetPassRate > 100 {
		errors = append(errors, ValidationError{
			Field:   "run.target_pass_rate",
			Value:   c.Run.TargetPassRate,
			Message: "must be between 0 and 100",
		})
	}

	if c.Run.HeartbeatIntervalSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "run.heartbeat_interval_seconds",
			Value:   c.Run.HeartbeatIntervalSeconds,
			Message: "must be at least 1",
		})
	}

	if c.Gate.PollIntervalSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "gate.poll_interval_seconds",
			Value:   c.Gate.PollIntervalSeconds,
			Message: "must be at least 1",
		})
	}

	if c.Gate.TimeoutMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "gate.timeout_minutes",
			Value:   c.Gate.TimeoutMinutes,
			Message: "must be zero (unbounded) or positive",
		})
	}

	if c.Test.Command == "" {
		errors = append(errors, ValidationError{
			Field:   "test.command",
			Value:   c.Test.Command,
			Message: "must not be empty",
		})
	}

	if c.Test.TailLines < 0 {
		errors = append(errors, ValidationError{
			Field:   "test.tail_lines",
			Value:   c.Test.TailLines,
			Message: "must be zero or positive",
		})
	}

	if !slices.Contains(ValidBackends(), strings.ToLower(c.Backend.Name)) {
		errors = append(errors, ValidationError{
			Field:   "backend.name",
			Value:   c.Backend.Name,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
	}

	if c.Backend.AuthPollSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "backend.auth_poll_seconds",
			Value:   c.Backend.AuthPollSeconds,
			Message: "must be at least 1",
		})
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
