package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andrewkhoh/farmhand/internal/layout"
	"github.com/andrewkhoh/farmhand/internal/testrun"
)

// Outcome summarizes the terminal state folded into a sentinel file.
type Outcome struct {
	Agent          string
	Cycles         int
	MaxRestarts    int
	Result         testrun.Result
	TargetPassRate int
	FilesModified  []string
}

// SentinelPayload is the machine-readable block embedded in a sentinel
// body. The file's existence alone is the gating signal; the payload lets
// downstream agents read context instead of just presence.
type SentinelPayload struct {
	Agent          string   `json:"agent"`
	Complete       bool     `json:"complete"`
	Cycles         int      `json:"cycles"`
	MaxRestarts    int      `json:"max_restarts"`
	TestsPass      int      `json:"tests_pass"`
	TestsFail      int      `json:"tests_fail"`
	PassRate       int      `json:"pass_rate"`
	TargetPassRate int      `json:"target_pass_rate"`
	FinishedAt     string   `json:"finished_at"`
	FilesModified  []string `json:"files_modified,omitempty"`
}

// WriteCompletionSentinel creates the handoff sentinel that unblocks
// downstream agents. The body carries a human-readable summary plus an
// embedded payload block.
func WriteCompletionSentinel(paths layout.Layout, o Outcome) (string, error) {
	path := paths.HandoffFile(o.Agent)
	return path, writeSentinel(path, completionBody(o))
}

// WriteBlockerSentinel creates the blocker marker written instead of the
// completion sentinel when the budget runs out below target.
func WriteBlockerSentinel(paths layout.Layout, o Outcome) (string, error) {
	path := paths.BlockerFile(o.Agent)
	return path, writeSentinel(path, blockerBody(o))
}

// ParseCompletionSentinel reads the completion sentinel's embedded payload.
// Returns os.ErrNotExist (wrapped) when the sentinel has not been written.
func ParseCompletionSentinel(paths layout.Layout, agentName string) (*SentinelPayload, error) {
	return parseSentinel(paths.HandoffFile(agentName))
}

// ParseBlockerSentinel reads the blocker sentinel's embedded payload.
func ParseBlockerSentinel(paths layout.Layout, agentName string) (*SentinelPayload, error) {
	return parseSentinel(paths.BlockerFile(agentName))
}

func parseSentinel(path string) (*SentinelPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	body := string(data)
	start := strings.Index(body, "```json\n")
	if start < 0 {
		// Hand-written sentinel without a payload block still counts as
		// a valid signal.
		return nil, fmt.Errorf("sentinel %s has no payload block", path)
	}
	rest := body[start+len("```json\n"):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return nil, fmt.Errorf("sentinel %s has an unterminated payload block", path)
	}

	var payload SentinelPayload
	if err := json.Unmarshal([]byte(rest[:end]), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse sentinel payload: %w", err)
	}
	return &payload, nil
}

func writeSentinel(path, body string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create sentinel directory: %w", err)
	}
	// Sentinel existence is monotonic; never overwrite one that is
	// already there.
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(body), 0644)
}

func payload(o Outcome, complete bool) SentinelPayload {
	return SentinelPayload{
		Agent:          o.Agent,
		Complete:       complete,
		Cycles:         o.Cycles,
		MaxRestarts:    o.MaxRestarts,
		TestsPass:      o.Result.Pass,
		TestsFail:      o.Result.Fail,
		PassRate:       o.Result.PassRate,
		TargetPassRate: o.TargetPassRate,
		FinishedAt:     time.Now().UTC().Format(time.RFC3339),
		FilesModified:  o.FilesModified,
	}
}

func payloadBlock(p SentinelPayload) string {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return ""
	}
	return fmt.Sprintf("```json\n%s\n```\n", data)
}

func completionBody(o Outcome) string {
	p := payload(o, true)
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: complete\n\n", o.Agent)
	fmt.Fprintf(&b, "Finished at %s after %d of %d cycles.\n\n",
		p.FinishedAt, o.Cycles, o.MaxRestarts)
	fmt.Fprintf(&b, "Final tests: %s (target %d%%).\n", o.Result.Summary(), o.TargetPassRate)
	if len(o.FilesModified) > 0 {
		b.WriteString("\nFiles touched:\n")
		for _, f := range o.FilesModified {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	b.WriteString("\n")
	b.WriteString(payloadBlock(p))
	return b.String()
}

func blockerBody(o Outcome) string {
	p := payload(o, false)
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: incomplete\n\n", o.Agent)
	fmt.Fprintf(&b, "Restart budget exhausted at %s (%d of %d cycles) below target.\n\n",
		p.FinishedAt, o.Cycles, o.MaxRestarts)
	fmt.Fprintf(&b, "Final tests: %s, target was %d%%.\n", o.Result.Summary(), o.TargetPassRate)
	b.WriteString("\nDownstream agents remain blocked until this is resolved and the\ncompletion sentinel is written.\n")
	b.WriteString("\n")
	b.WriteString(payloadBlock(p))
	return b.String()
}
