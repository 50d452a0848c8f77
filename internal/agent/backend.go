// Package agent wraps the external LLM CLI: authentication probing, prompt
// composition, and non-interactive invocation with classified output.
package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andrewkhoh/farmhand/internal/config"
)

// BackendName identifies a supported agent CLI backend.
type BackendName string

const (
	BackendClaude BackendName = "claude"
	BackendCodex  BackendName = "codex"
)

// Backend provides backend-specific behavior for probing and invoking an
// agent CLI. All invocations are non-interactive one-shots; the supervisor
// never holds an interactive session open.
type Backend interface {
	Name() BackendName
	DisplayName() string

	// Command returns the binary to execute.
	Command() string

	// ProbeArgs returns argv (after the binary) for a trivial call whose
	// output reveals whether the CLI is authenticated.
	ProbeArgs() []string

	// NeedsAuth reports whether probe output indicates missing
	// authentication. Pattern matching is best-effort; unknown output is
	// treated as authenticated so a format change fails open rather than
	// wedging the supervisor in the auth wait loop.
	NeedsAuth(probeOutput string) bool

	// InvokeArgs returns argv (after the binary) for a one-shot run of the
	// given prompt, printing output and exiting.
	InvokeArgs(prompt string) []string
}

// ErrUnknownBackend is returned when the configured backend is unsupported.
var ErrUnknownBackend = fmt.Errorf("unknown agent backend")

// NewBackend builds a Backend from configuration.
func NewBackend(cfg config.BackendConfig) (Backend, error) {
	switch strings.ToLower(cfg.Name) {
	case string(BackendClaude), "":
		return NewClaudeBackend(cfg), nil
	case string(BackendCodex):
		return NewCodexBackend(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Name)
	}
}

// ClaudeBackend implements Backend for the Claude Code CLI.
type ClaudeBackend struct {
	command         string
	skipPermissions bool
	authPatterns    []*regexp.Regexp
}

var claudeAuthFailurePatterns = []string{
	`(?i)invalid api key`,
	`(?i)please run /login`,
	`(?i)not (?:logged in|authenticated)`,
	`(?i)authentication[ _]error`,
	`(?i)unauthorized`,
}

// NewClaudeBackend creates a Claude backend from config.
func NewClaudeBackend(cfg config.BackendConfig) *ClaudeBackend {
	command := cfg.Command
	if command == "" {
		command = "claude"
	}
	return &ClaudeBackend{
		command:         command,
		skipPermissions: cfg.SkipPermissions,
		authPatterns:    compilePatterns(claudeAuthFailurePatterns),
	}
}

func (c *ClaudeBackend) Name() BackendName { return BackendClaude }

func (c *ClaudeBackend) DisplayName() string { return "Claude" }

func (c *ClaudeBackend) Command() string { return c.command }

func (c *ClaudeBackend) ProbeArgs() []string {
	return []string{"--print", "Respond with OK."}
}

func (c *ClaudeBackend) NeedsAuth(probeOutput string) bool {
	return matchesAny(probeOutput, c.authPatterns)
}

func (c *ClaudeBackend) InvokeArgs(prompt string) []string {
	args := []string{"--print"}
	if c.skipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}
	return append(args, prompt)
}

// CodexBackend implements Backend for the Codex CLI.
type CodexBackend struct {
	command      string
	authPatterns []*regexp.Regexp
}

var codexAuthFailurePatterns = []string{
	`(?i)not signed in`,
	`(?i)please (?:sign in|log ?in)`,
	`(?i)authentication[ _]error`,
	`(?i)unauthorized`,
}

// NewCodexBackend creates a Codex backend from config.
func NewCodexBackend(cfg config.BackendConfig) *CodexBackend {
	command := cfg.Command
	if command == "" {
		command = "codex"
	}
	return &CodexBackend{
		command:      command,
		authPatterns: compilePatterns(codexAuthFailurePatterns),
	}
}

func (c *CodexBackend) Name() BackendName { return BackendCodex }

func (c *CodexBackend) DisplayName() string { return "Codex" }

func (c *CodexBackend) Command() string { return c.command }

func (c *CodexBackend) ProbeArgs() []string {
	return []string{"exec", "Respond with OK."}
}

func (c *CodexBackend) NeedsAuth(probeOutput string) bool {
	return matchesAny(probeOutput, c.authPatterns)
}

func (c *CodexBackend) InvokeArgs(prompt string) []string {
	return []string{"exec", "--full-auto", prompt}
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			compiled = append(compiled, re)
		}
	}
	return compiled
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
